package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonymoraes/mediaserver/internal/cache"
	"github.com/jonymoraes/mediaserver/internal/ledger"
	"github.com/jonymoraes/mediaserver/internal/models"
	"github.com/jonymoraes/mediaserver/internal/notifier"
	"github.com/jonymoraes/mediaserver/internal/repository"
	"github.com/jonymoraes/mediaserver/internal/storage"
	"github.com/jonymoraes/mediaserver/internal/store"
)

type recorder struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (r *recorder) Publish(_ context.Context, e notifier.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

type fixture struct {
	sweeper *Sweeper
	repos   *repository.Repositories
	store   *store.Memory
	storage *storage.MemoryStorage
	events  *recorder
	account *models.Account
	quota   *models.Quota
}

func newFixture(t *testing.T, batch int) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	repos := repository.New(st, cache.NewMemory())

	domain := "sweep.test"
	a, err := repos.Accounts.Create(ctx, &models.Account{
		APIKey: "k", Status: models.AccountActive, Name: "sweep", Domain: &domain,
		Folder: "sweep.test", StoragePath: "public/sweep.test", Role: models.RoleUser,
	})
	require.NoError(t, err)
	q, err := repos.Quotas.FindCurrent(ctx, a.ID)
	require.NoError(t, err)

	events := &recorder{}
	mem := storage.NewMemoryStorage()
	s := New(Dependencies{
		Repos:     repos,
		Ledger:    ledger.New(st, repos),
		Storage:   mem,
		Notifier:  events,
		BatchSize: batch,
	})
	return &fixture{sweeper: s, repos: repos, store: st, storage: mem, events: events, account: a, quota: q}
}

// seed stores a media row with its file and charges its size.
func (f *fixture) seed(t *testing.T, kind models.MediaKind, filename string, size int64, status models.MediaStatus, expiresIn time.Duration) *models.Media {
	t.Helper()
	ctx := context.Background()
	expires := time.Now().Add(expiresIn)
	m, err := f.repos.Media(kind).Create(ctx, &models.Media{
		Filename: filename, Mimetype: "image/webp", Filesize: size, Status: status,
		ExpiresAt: &expires, AccountID: f.account.ID, QuotaID: &f.quota.ID,
	})
	require.NoError(t, err)
	f.storage.Put(storage.Key(f.account.Folder, filename), []byte("x"), "image/webp")
	_, err = f.store.AddUsedBytes(ctx, f.account.ID, size)
	require.NoError(t, err)
	return m
}

func (f *fixture) usedBytes(t *testing.T) int64 {
	t.Helper()
	a, err := f.store.GetAccount(context.Background(), f.account.ID)
	require.NoError(t, err)
	return a.UsedBytes
}

func TestRun_ReclaimsExpiredMedia(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := f.store.AddUsedBytes(ctx, f.account.ID, 9_000_000)
	require.NoError(t, err)
	f.seed(t, models.KindImage, "old.webp", 500_000, models.MediaTemporary, -time.Hour)
	kept := f.seed(t, models.KindImage, "fresh.webp", 1_000, models.MediaTemporary, time.Hour)
	require.EqualValues(t, 9_501_000, f.usedBytes(t))

	stats, err := f.sweeper.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Deleted)
	assert.EqualValues(t, 500_000, stats.ReclaimedBytes)
	assert.EqualValues(t, 9_001_000, f.usedBytes(t))

	ok, _ := f.storage.Exists(ctx, "sweep.test/old.webp")
	assert.False(t, ok)
	ok, _ = f.storage.Exists(ctx, "sweep.test/fresh.webp")
	assert.True(t, ok)

	_, err = f.repos.Images.FindByID(ctx, kept.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, f.store.MediaCount(models.KindImage))

	require.Len(t, f.events.events, 1)
	e := f.events.events[0]
	assert.Equal(t, notifier.EventQuotaUpdated, e.Type)
	assert.Equal(t, f.account.ID, e.Room)
	assert.EqualValues(t, 9_001_000, e.Quota.UsedBytes)
	assert.Equal(t, f.quota.ID, e.Quota.QuotaID)
}

func TestRun_BothKindsAcrossBatches(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	for _, name := range []string{"a.webp", "b.webp", "c.webp", "d.webp", "e.webp"} {
		f.seed(t, models.KindImage, name, 100, models.MediaTemporary, -time.Minute)
	}
	f.seed(t, models.KindVideo, "clip.webm", 1_000, models.MediaTemporary, -time.Minute)
	f.seed(t, models.KindVideo, "kept.webm", 1_000, models.MediaActive, -time.Minute)

	stats, err := f.sweeper.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 6, stats.Deleted)
	assert.EqualValues(t, 1_500, stats.ReclaimedBytes)
	assert.Equal(t, 0, f.store.MediaCount(models.KindImage))
	assert.Equal(t, 1, f.store.MediaCount(models.KindVideo))
	assert.EqualValues(t, 1_000, f.usedBytes(t))
}

func TestRun_StorageFailureDoesNotStopSweep(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	f.seed(t, models.KindImage, "stuck.webp", 300, models.MediaTemporary, -time.Hour)
	f.seed(t, models.KindImage, "gone.webp", 200, models.MediaTemporary, -time.Hour)
	f.storage.DeleteErrs["sweep.test/stuck.webp"] = errors.New("disk busy")

	stats, err := f.sweeper.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Deleted)
	assert.Equal(t, 1, stats.StorageErrors)
	assert.EqualValues(t, 0, f.usedBytes(t))
}

func TestRun_DatabaseFailureTerminates(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	f.seed(t, models.KindImage, "a.webp", 300, models.MediaTemporary, -time.Hour)
	f.seed(t, models.KindVideo, "b.webm", 700, models.MediaTemporary, -time.Hour)
	f.store.DeleteMediaErr = errors.New("connection reset")

	stats, err := f.sweeper.Run(ctx)
	require.NoError(t, err)

	assert.Zero(t, stats.Deleted)
	assert.Equal(t, 2, stats.DatabaseErrors)
	assert.EqualValues(t, 1_000, f.usedBytes(t))
	assert.Empty(t, f.events.events)

	// rows that could not be deleted keep their files
	ok, _ := f.storage.Exists(ctx, "sweep.test/a.webp")
	assert.True(t, ok)
}

func TestRun_LedgerFailureIsIsolated(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	f.seed(t, models.KindImage, "a.webp", 300, models.MediaTemporary, -time.Hour)
	f.seed(t, models.KindImage, "b.webp", 300, models.MediaTemporary, -time.Hour)
	f.store.AddUsedBytesErr = errors.New("deadlock detected")

	stats, err := f.sweeper.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Deleted)
	assert.Equal(t, 2, stats.LedgerErrors)
	assert.Equal(t, 0, f.store.MediaCount(models.KindImage))
}

func TestStart_StopsWithContext(t *testing.T) {
	f := newFixture(t, 0)
	f.seed(t, models.KindImage, "a.webp", 10, models.MediaTemporary, -time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.sweeper.Start(ctx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool { return f.store.MediaCount(models.KindImage) == 0 },
		time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestSweepOne_SkipsMediaConfirmedAfterListing(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.seed(t, models.KindImage, "late.webp", 700, models.MediaTemporary, -time.Hour)

	batch, err := f.repos.Images.FindExpired(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	// the owner confirms between the listing and the delete
	confirmed := *batch[0]
	confirmed.Status = models.MediaActive
	confirmed.ExpiresAt = nil
	_, err = f.repos.Images.Save(ctx, &confirmed)
	require.NoError(t, err)

	var stats Stats
	f.sweeper.sweepOne(ctx, f.repos.Images, batch[0], &stats)

	assert.Zero(t, stats.Deleted)
	stored, err := f.store.GetMedia(ctx, models.KindImage, batch[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.MediaActive, stored.Status)

	ok, _ := f.storage.Exists(ctx, "sweep.test/late.webp")
	assert.True(t, ok, "confirmed file must stay published")
	assert.EqualValues(t, 700, f.usedBytes(t))
	assert.Empty(t, f.events.events)
}
