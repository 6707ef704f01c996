package cache

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"
)

type sample struct {
	Name  string `json:"name"`
	Bytes int64  `json:"bytes"`
}

func TestMemory_SetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	in := sample{Name: "acme", Bytes: 1 << 60}
	if err := c.Set(ctx, "k", in, time.Minute); err != nil {
		t.Fatal(err)
	}

	var out sample
	if err := c.Get(ctx, "k", &out); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if out != in {
		t.Errorf("Get() = %+v, want %+v", out, in)
	}

	if err := c.Get(ctx, "missing", &out); !errors.Is(err, ErrMiss) {
		t.Errorf("Get() missing error = %v, want ErrMiss", err)
	}
}

func TestMemory_TTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	now := time.Now()
	c.SetClock(func() time.Time { return now })

	if err := c.Set(ctx, "k", 1, AccountTTL); err != nil {
		t.Fatal(err)
	}

	c.SetClock(func() time.Time { return now.Add(AccountTTL - time.Second) })
	if !c.Has("k") {
		t.Fatal("key expired too early")
	}

	c.SetClock(func() time.Time { return now.Add(AccountTTL) })
	var v int
	if err := c.Get(ctx, "k", &v); !errors.Is(err, ErrMiss) {
		t.Errorf("Get() after TTL error = %v, want ErrMiss", err)
	}
}

func TestMemory_Incr(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	for want := int64(1); want <= 3; want++ {
		got, err := c.Incr(ctx, "rate:x", time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("Incr() = %d, want %d", got, want)
		}
	}
}

func TestMemory_DeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	for _, k := range []string{AccountByID("1"), AccountByDomain("a.com"), QuotaByID("q1"), MediaByID("image", "m1")} {
		if err := c.Set(ctx, k, "v", 0); err != nil {
			t.Fatal(err)
		}
	}

	n, err := c.DeleteByPrefix(ctx, "account:")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("DeleteByPrefix() = %d, want 2", n)
	}

	keys := c.Keys()
	sort.Strings(keys)
	want := []string{"image:id:m1", "quota:id:q1"}
	if len(keys) != len(want) || keys[0] != want[0] || keys[1] != want[1] {
		t.Errorf("remaining keys = %v, want %v", keys, want)
	}
}

func TestMemory_Outage(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	c.Err = errors.New("connection refused")

	var v int
	if err := c.Get(ctx, "k", &v); err == nil || errors.Is(err, ErrMiss) {
		t.Errorf("Get() during outage error = %v, want outage error", err)
	}
	if err := c.Set(ctx, "k", 1, 0); err == nil {
		t.Error("Set() during outage should fail")
	}
}

func TestKeys(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{AccountByID("a1"), "account:id:a1"},
		{AccountByDomain("acme.com"), "account:domain:acme.com"},
		{AccountByFolder("acme"), "account:folder:acme"},
		{AccountByAPIKey("k"), "account:apikey:k"},
		{QuotaByID("q"), "quota:id:q"},
		{QuotaByAccount("a1", "2024-05"), "quota:account:a1:2024-05"},
		{MediaByID("video", "v1"), "video:id:v1"},
		{MediaByAccount("image", "a1"), "image:account:a1"},
		{JobByID("image", "j1"), "image:job:j1"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("key = %q, want %q", tt.got, tt.want)
		}
	}
}
