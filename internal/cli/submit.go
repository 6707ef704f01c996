package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/job-queue/pkg/broker"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/jonymoraes/mediaserver/internal/app"
	"github.com/jonymoraes/mediaserver/internal/config"
	"github.com/jonymoraes/mediaserver/internal/models"
	"github.com/jonymoraes/mediaserver/internal/processor/image"
	"github.com/jonymoraes/mediaserver/internal/processor/video"
	"github.com/jonymoraes/mediaserver/internal/worker"
)

var (
	submitAccount string
	submitContext string
	submitFormat  string
	submitWatch   bool
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Queue an image or video for processing",
}

var submitImageCmd = &cobra.Command{
	Use:   "image <file>",
	Short: "Resize an image to a context's bounds and convert it to WebP",
	Long: `Stage an image for the account and queue it.

Examples:
  mediactl submit image portrait.jpg --account <id> --context avatar
  mediactl submit image banner.png --account <id> --context banner --watch`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSubmit(cmd.Context(), models.KindImage, args[0])
	},
}

var submitVideoCmd = &cobra.Command{
	Use:   "video <file>",
	Short: "Transcode a video to a target format",
	Long: `Stage a video for the account and queue it for ffmpeg.

Examples:
  mediactl submit video clip.mov --account <id> --format webm --watch`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSubmit(cmd.Context(), models.KindVideo, args[0])
	},
}

func init() {
	submitCmd.PersistentFlags().StringVar(&submitAccount, "account", "", "Owning account id")
	submitCmd.PersistentFlags().BoolVarP(&submitWatch, "watch", "w", false, "Follow progress until the job finishes")
	_ = submitCmd.MarkPersistentFlagRequired("account")

	submitImageCmd.Flags().StringVar(&submitContext, "context", "generic", "Image context (avatar, banner, generic, ...)")
	submitVideoCmd.Flags().StringVar(&submitFormat, "format", "webm", "Target format (mp4, webm, gif, ...)")

	submitCmd.AddCommand(submitImageCmd)
	submitCmd.AddCommand(submitVideoCmd)
}

// submitValidator checks payloads against the same tables the worker uses.
// Video formats come from the defaults plus the profiles file; ffmpeg does
// not need to be installed here.
func submitValidator() (*worker.Validator, error) {
	profiles, err := config.LoadProfiles(cfg.ProfilesFile)
	if err != nil {
		return nil, err
	}
	return worker.NewValidator(image.New(profiles.ImageContexts), video.NewFormatTable(profiles.VideoFormats)), nil
}

func runSubmit(ctx context.Context, kind models.MediaKind, src string) error {
	a, err := connect(ctx)
	if err != nil {
		return err
	}
	acc, err := a.Repos.Accounts.FindByID(ctx, submitAccount)
	if err != nil {
		return err
	}
	quota, err := a.Repos.Quotas.FindCurrent(ctx, acc.ID)
	if err != nil {
		return err
	}
	v, err := submitValidator()
	if err != nil {
		return err
	}

	path, size, err := stageUpload(cfg.StorageRoot, acc.Folder, src)
	if err != nil {
		return err
	}
	mime := "application/octet-stream"
	if m, err := mimetype.DetectFile(path); err == nil {
		mime = m.String()
	}
	up := worker.Upload{
		Filename:  filepath.Base(path),
		Filepath:  path,
		Mimetype:  mime,
		Filesize:  size,
		AccountID: acc.ID,
		QuotaID:   quota.ID,
	}

	var w *watcher
	if submitWatch {
		w = startWatch(ctx, a, acc.ID)
		defer w.stop()
	}

	jobID, err := submit(ctx, a, v, kind, up)
	if err != nil {
		_ = os.Remove(path)
		return err
	}

	result := map[string]string{"jobId": jobID, "kind": string(kind), "filename": up.Filename}
	if !submitWatch {
		return printer.Result(result, func() {
			printer.Success("Queued %s job %s", kind, jobID)
			printer.Info("mediactl watch %s %s", kind, jobID)
		})
	}
	printer.Info("Queued %s job %s", kind, jobID)
	return w.wait(ctx, a, kind, jobID)
}

func submit(ctx context.Context, a *app.App, v *worker.Validator, kind models.MediaKind, up worker.Upload) (string, error) {
	queue := broker.NewRedisStreamsBroker(a.Redis)
	s := worker.NewSubmitter(queue, a.ImageJobs, a.VideoJobs, v, a.Ledger)
	if kind == models.KindVideo {
		return s.SubmitVideo(ctx, worker.VideoPayload{Upload: up, Format: submitFormat})
	}
	return s.SubmitImage(ctx, worker.ImagePayload{Upload: up, Context: submitContext})
}
