// Package health reports whether the worker's dependencies are reachable.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

const checkTimeout = 5 * time.Second

// Probe checks one dependency.
type Probe func(ctx context.Context) error

type ComponentHealth struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Latency int64  `json:"latency_ms"`
	Error   string `json:"error,omitempty"`
}

type HealthResponse struct {
	Status     Status            `json:"status"`
	Components []ComponentHealth `json:"components,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

type Checker struct {
	probes map[string]Probe
}

func NewChecker() *Checker {
	return &Checker{probes: make(map[string]Probe)}
}

func (c *Checker) With(name string, p Probe) *Checker {
	c.probes[name] = p
	return c
}

func (c *Checker) WithDatabase(pool *pgxpool.Pool) *Checker {
	return c.With("database", pool.Ping)
}

func (c *Checker) WithRedis(client redis.UniversalClient) *Checker {
	return c.With("redis", func(ctx context.Context) error { return client.Ping(ctx).Err() })
}

// WithStorage accepts anything with a HealthCheck, such as storage.Storage.
func (c *Checker) WithStorage(s interface{ HealthCheck(context.Context) error }) *Checker {
	return c.With("storage", s.HealthCheck)
}

// CheckAll runs every probe concurrently. Components are sorted by name.
func (c *Checker) CheckAll(ctx context.Context) HealthResponse {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		components = make([]ComponentHealth, 0, len(c.probes))
	)
	for name, probe := range c.probes {
		wg.Add(1)
		go func(name string, probe Probe) {
			defer wg.Done()
			comp := check(ctx, name, probe)
			mu.Lock()
			components = append(components, comp)
			mu.Unlock()
		}(name, probe)
	}
	wg.Wait()

	sort.Slice(components, func(i, j int) bool { return components[i].Name < components[j].Name })

	status := StatusHealthy
	for _, comp := range components {
		if comp.Status == StatusUnhealthy {
			status = StatusUnhealthy
			break
		}
	}

	return HealthResponse{
		Status:     status,
		Components: components,
		Timestamp:  time.Now(),
	}
}

func check(ctx context.Context, name string, probe Probe) ComponentHealth {
	start := time.Now()
	err := probe(ctx)
	comp := ComponentHealth{
		Name:    name,
		Status:  StatusHealthy,
		Latency: time.Since(start).Milliseconds(),
	}
	if err != nil {
		comp.Status = StatusUnhealthy
		comp.Error = err.Error()
	}
	return comp
}

func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}
}

func ReadinessHandler(checker *Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := checker.CheckAll(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
