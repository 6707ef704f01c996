// Package notifier delivers job progress and quota events to listeners.
// Delivery is at-most-once with no replay: a listener that falls behind
// loses events.
package notifier

import (
	"context"
	"time"

	"github.com/jonymoraes/mediaserver/internal/models"
)

type EventType string

const (
	EventProgress     EventType = "progress"
	EventCompleted    EventType = "completed"
	EventCanceled     EventType = "canceled"
	EventFailed       EventType = "failed"
	EventQuotaUpdated EventType = "quota-updated"
)

// KindQuota tags quota events; media events carry the media kind.
const KindQuota = "quota"

// QuotaSnapshot is the account usage published after every charge.
type QuotaSnapshot struct {
	AccountID        string `json:"account_id"`
	QuotaID          string `json:"quota_id,omitempty"`
	Period           string `json:"period,omitempty"`
	UsedBytes        int64  `json:"used_bytes"`
	TransferredBytes int64  `json:"transferred_bytes"`
	TotalRequests    int64  `json:"total_requests"`
}

// Event is the single wire shape for every notification. Room is the
// account id and scopes delivery; an empty room reaches only global
// listeners.
type Event struct {
	Type       EventType      `json:"type"`
	Kind       string         `json:"kind"`
	Room       string         `json:"room,omitempty"`
	JobID      string         `json:"job_id,omitempty"`
	Percentage int            `json:"percentage,omitempty"`
	Stage      string         `json:"stage,omitempty"`
	URL        string         `json:"url,omitempty"`
	Error      string         `json:"error,omitempty"`
	Quota      *QuotaSnapshot `json:"quota,omitempty"`
	At         time.Time      `json:"at"`
}

type Notifier interface {
	Publish(ctx context.Context, e Event) error
}

func Progress(kind models.MediaKind, room, jobID string, percentage int, stage string) Event {
	return Event{Type: EventProgress, Kind: string(kind), Room: room, JobID: jobID,
		Percentage: percentage, Stage: stage, At: time.Now()}
}

func Completed(kind models.MediaKind, room, jobID, url string) Event {
	return Event{Type: EventCompleted, Kind: string(kind), Room: room, JobID: jobID,
		Percentage: 100, URL: url, At: time.Now()}
}

func Canceled(kind models.MediaKind, room, jobID string) Event {
	return Event{Type: EventCanceled, Kind: string(kind), Room: room, JobID: jobID, At: time.Now()}
}

func Failed(kind models.MediaKind, room, jobID, reason string) Event {
	return Event{Type: EventFailed, Kind: string(kind), Room: room, JobID: jobID,
		Error: reason, At: time.Now()}
}

// QuotaUpdated builds a quota event for the account. q may be nil when
// only the storage counter is known.
func QuotaUpdated(account *models.Account, q *models.Quota) Event {
	snap := &QuotaSnapshot{AccountID: account.ID, UsedBytes: account.UsedBytes}
	if q != nil {
		snap.QuotaID = q.ID
		snap.Period = q.Period
		snap.TransferredBytes = q.TransferredBytes
		snap.TotalRequests = q.TotalRequests
	}
	return Event{Type: EventQuotaUpdated, Kind: KindQuota, Room: account.ID, Quota: snap, At: time.Now()}
}

// Terminal reports whether e ends a job's event stream.
func (e Event) Terminal() bool {
	switch e.Type {
	case EventCompleted, EventCanceled, EventFailed:
		return true
	}
	return false
}
