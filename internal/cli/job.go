package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonymoraes/mediaserver/internal/app"
	"github.com/jonymoraes/mediaserver/internal/cli/output"
	"github.com/jonymoraes/mediaserver/internal/jobrecord"
	"github.com/jonymoraes/mediaserver/internal/logger"
	"github.com/jonymoraes/mediaserver/internal/models"
	"github.com/jonymoraes/mediaserver/internal/notifier"
	"github.com/jonymoraes/mediaserver/internal/worker"
)

const pollInterval = 2 * time.Second

var errJobFailed = errors.New("job failed")

func canceller(a *app.App) *worker.Canceller {
	return worker.NewCanceller(a.ImageJobs, a.VideoJobs)
}

var statusCmd = &cobra.Command{
	Use:   "status <image|video> <job-id>",
	Short: "Show the status of a job",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		a, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		rec, err := canceller(a).Status(cmd.Context(), kind, args[1])
		if err != nil {
			return err
		}
		return printer.Result(rec, func() {
			printer.Section("Job " + rec.JobID)
			printer.KeyValue("Kind", string(rec.Kind))
			printer.KeyValue("Status", output.Status(string(rec.Status)))
			printer.KeyValue("Progress", strconv.Itoa(rec.Progress)+"%")
			if rec.Stage != "" {
				printer.KeyValue("Stage", rec.Stage)
			}
			printer.KeyValue("File", rec.Filename+" ("+formatSize(rec.Filesize)+")")
			if rec.URL != "" {
				printer.KeyValue("URL", rec.URL)
			}
		})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <image|video> <job-id>",
	Short: "Cancel a queued or running job",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		a, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		rec, err := canceller(a).Cancel(cmd.Context(), kind, args[1])
		if err != nil {
			return err
		}
		return printer.Result(rec, func() {
			printer.Success("Job %s marked canceled", rec.JobID)
		})
	},
}

var watchTimeout time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <image|video> <job-id>",
	Short: "Follow a job's progress until it finishes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		a, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		rec, err := canceller(a).Status(cmd.Context(), kind, args[1])
		if err != nil {
			return err
		}
		w := startWatch(cmd.Context(), a, rec.AccountID)
		defer w.stop()
		return w.wait(cmd.Context(), a, kind, rec.JobID)
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", 0, "Give up after this long (0 waits forever)")
}

// watcher relays pipeline events for one account into a local hub.
type watcher struct {
	hub    *notifier.Hub
	sub    *notifier.Subscription
	cancel context.CancelFunc
	done   chan struct{}
}

func startWatch(ctx context.Context, a *app.App, accountID string) *watcher {
	hub := notifier.NewHub()
	w := &watcher{hub: hub, sub: hub.Subscribe(accountID, 256), done: make(chan struct{})}

	relayCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go func() {
		defer close(w.done)
		if err := notifier.NewRelay(a.Redis, notifier.DefaultChannel, hub).Run(relayCtx); err != nil {
			logger.FromContext(ctx).Warn("event relay stopped", "error", err)
		}
	}()
	return w
}

func (w *watcher) stop() {
	w.cancel()
	<-w.done
	w.hub.Close()
}

func (w *watcher) wait(ctx context.Context, a *app.App, kind models.MediaKind, jobID string) error {
	if watchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, watchTimeout)
		defer cancel()
	}
	records := a.ImageJobs
	if kind == models.KindVideo {
		records = a.VideoJobs
	}

	bar := output.NewJobProgress(printer.Out(), string(kind)+" "+jobID, printer.Quiet())
	res, err := follow(ctx, w.sub.C, records, jobID, bar.Update, pollInterval)
	if err != nil || res.Type != notifier.EventCompleted {
		bar.Abandon()
	} else {
		bar.Finish()
	}
	if err != nil {
		return err
	}
	return report(res)
}

func report(res *notifier.Event) error {
	switch res.Type {
	case notifier.EventCompleted:
		return printer.Result(res, func() { printer.Success("Done: %s", res.URL) })
	case notifier.EventCanceled:
		return printer.Result(res, func() { printer.Warn("Job %s was canceled", res.JobID) })
	default:
		_ = printer.Result(res, func() { printer.Error("Job %s failed: %s", res.JobID, res.Error) })
		return errJobFailed
	}
}

// follow consumes events for jobID until a terminal one arrives. Delivery
// is at-most-once, so the stored record is polled as well and a terminal
// record ends the wait too. Failures are only visible as events.
func follow(ctx context.Context, events <-chan notifier.Event, records *jobrecord.Store, jobID string, progress func(int, string), interval time.Duration) (*notifier.Event, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	check := func() (*notifier.Event, error) {
		rec, err := records.Get(ctx, jobID)
		if err != nil {
			return nil, err
		}
		progress(rec.Progress, rec.Stage)
		switch rec.Status {
		case jobrecord.StatusDone:
			e := notifier.Completed(rec.Kind, rec.AccountID, rec.JobID, rec.URL)
			return &e, nil
		case jobrecord.StatusCanceled:
			e := notifier.Canceled(rec.Kind, rec.AccountID, rec.JobID)
			return &e, nil
		}
		return nil, nil
	}

	if res, err := check(); res != nil || err != nil {
		return res, err
	}
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("stopped waiting for job %s: %w", jobID, ctx.Err())
		case e, ok := <-events:
			if !ok {
				return nil, fmt.Errorf("event stream closed while waiting for job %s", jobID)
			}
			if e.JobID != jobID {
				continue
			}
			if e.Type == notifier.EventProgress {
				progress(e.Percentage, e.Stage)
				continue
			}
			if e.Terminal() {
				return &e, nil
			}
		case <-ticker.C:
			if res, err := check(); res != nil || err != nil {
				return res, err
			}
		}
	}
}
