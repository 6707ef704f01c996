package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonymoraes/mediaserver/internal/models"
)

func strPtr(s string) *string { return &s }

func seedAccount(t *testing.T, s *Memory, folder string) *models.Account {
	t.Helper()
	a, err := s.CreateAccount(context.Background(), &models.Account{
		APIKey:      "key-" + folder,
		Name:        folder,
		Folder:      folder,
		StoragePath: "public/" + folder,
	})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	return a
}

func TestMemory_AccountUniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.CreateAccount(ctx, &models.Account{APIKey: "k1", Folder: "a", Domain: strPtr("a.com")})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	tests := []struct {
		name string
		acc  *models.Account
	}{
		{"duplicate apikey", &models.Account{APIKey: "k1", Folder: "b"}},
		{"duplicate folder", &models.Account{APIKey: "k2", Folder: "a"}},
		{"duplicate domain", &models.Account{APIKey: "k3", Folder: "c", Domain: strPtr("a.com")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.CreateAccount(ctx, tt.acc); !errors.Is(err, ErrDuplicate) {
				t.Errorf("CreateAccount() error = %v, want ErrDuplicate", err)
			}
		})
	}
}

func TestMemory_AddUsedBytesConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	a := seedAccount(t, s, "acme")

	if _, err := s.AddUsedBytes(ctx, a.ID, 1000); err != nil {
		t.Fatal(err)
	}

	const workers = 50
	var wg sync.WaitGroup
	for i := 1; i <= workers; i++ {
		wg.Add(1)
		go func(delta int64) {
			defer wg.Done()
			if _, err := s.AddUsedBytes(ctx, a.ID, delta); err != nil {
				t.Errorf("AddUsedBytes() error = %v", err)
			}
		}(int64(i))
	}
	wg.Wait()

	got, err := s.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := int64(1000 + workers*(workers+1)/2)
	if got.UsedBytes != want {
		t.Errorf("UsedBytes = %d, want %d", got.UsedBytes, want)
	}
}

func TestMemory_AddUsedBytesClampsAtZero(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	a := seedAccount(t, s, "acme")

	used, err := s.AddUsedBytes(ctx, a.ID, -500)
	if err != nil {
		t.Fatal(err)
	}
	if used != 0 {
		t.Errorf("UsedBytes = %d, want 0", used)
	}

	if _, err := s.AddUsedBytes(ctx, "missing", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddUsedBytes() on missing account error = %v, want ErrNotFound", err)
	}
}

func TestMemory_EnsureQuotaConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	a := seedAccount(t, s, "acme")

	const callers = 20
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q, err := s.EnsureQuota(ctx, a.ID, "2024-05")
			if err != nil {
				t.Errorf("EnsureQuota() error = %v", err)
				return
			}
			ids[i] = q.ID
		}(i)
	}
	wg.Wait()

	if n := s.QuotaCount(a.ID); n != 1 {
		t.Fatalf("QuotaCount() = %d, want 1", n)
	}
	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("EnsureQuota() returned different ids: %q vs %q", id, ids[0])
		}
	}
}

func TestMemory_Cascades(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	a := seedAccount(t, s, "acme")

	q, err := s.EnsureQuota(ctx, a.ID, "2024-05")
	if err != nil {
		t.Fatal(err)
	}
	m, err := s.CreateMedia(ctx, &models.Media{
		Kind: models.KindImage, Filename: "a.webp", AccountID: a.ID, QuotaID: &q.ID,
	})
	if err != nil {
		t.Fatal(err)
	}

	if ok, _ := s.DeleteQuota(ctx, q.ID); !ok {
		t.Fatal("DeleteQuota() = false")
	}
	got, err := s.GetMedia(ctx, models.KindImage, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.QuotaID != nil {
		t.Errorf("QuotaID = %v, want nil after quota deletion", *got.QuotaID)
	}

	if ok, _ := s.DeleteAccount(ctx, a.ID); !ok {
		t.Fatal("DeleteAccount() = false")
	}
	if _, err := s.GetMedia(ctx, models.KindImage, m.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMedia() after account deletion error = %v, want ErrNotFound", err)
	}
	if ok, _ := s.DeleteAccount(ctx, a.ID); ok {
		t.Error("DeleteAccount() twice should report false")
	}
}

func TestMemory_ListExpiredMedia(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	a := seedAccount(t, s, "acme")

	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	fixtures := []struct {
		name    string
		kind    models.MediaKind
		status  models.MediaStatus
		expires *time.Time
		created time.Time
	}{
		{"old.webp", models.KindImage, models.MediaTemporary, &past, now.Add(-3 * time.Hour)},
		{"newer.webp", models.KindImage, models.MediaTemporary, &past, now.Add(-2 * time.Hour)},
		{"future.webp", models.KindImage, models.MediaTemporary, &future, now.Add(-4 * time.Hour)},
		{"active.webp", models.KindImage, models.MediaActive, nil, now.Add(-5 * time.Hour)},
		{"clip.mp4", models.KindVideo, models.MediaTemporary, &past, now.Add(-6 * time.Hour)},
	}
	for _, f := range fixtures {
		if _, err := s.CreateMedia(ctx, &models.Media{
			Kind: f.kind, Filename: f.name, Status: f.status, ExpiresAt: f.expires,
			AccountID: a.ID, CreatedAt: f.created,
		}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListExpiredMedia(ctx, models.KindImage, now, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Filename != "old.webp" || got[1].Filename != "newer.webp" {
		t.Errorf("order = [%s %s], want oldest first", got[0].Filename, got[1].Filename)
	}

	limited, _ := s.ListExpiredMedia(ctx, models.KindImage, now, 1)
	if len(limited) != 1 {
		t.Errorf("limit not applied: len = %d", len(limited))
	}
}
