// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package judge

import (
	"context"
	"sync"
	"time"

	recallerr "github.com/sigil-dev/recall/pkg/errors"
	"github.com/sigil-dev/recall/pkg/health"
)

// DefaultCooldown is how long a judge is reported unavailable after a failed
// call.
const DefaultCooldown = 30 * time.Second

// HealthTracker records the outcome of judge calls. A judge is healthy until
// RecordFailure is called, then unhealthy until the cooldown elapses or a
// call succeeds.
type HealthTracker struct {
	mu           sync.RWMutex
	healthy      bool
	failedAt     time.Time
	cooldown     time.Duration
	failureCount int64
	nowFunc      func() time.Time
}

// NewHealthTracker returns a healthy tracker. cooldown must be positive.
func NewHealthTracker(cooldown time.Duration) (*HealthTracker, error) {
	if cooldown <= 0 {
		return nil, recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue,
			"judge health cooldown must be positive, got %s", cooldown)
	}
	return &HealthTracker{
		healthy:  true,
		cooldown: cooldown,
		nowFunc:  time.Now,
	}, nil
}

// Caller must hold h.mu.
func (h *HealthTracker) isHealthyLocked() bool {
	if h.healthy {
		return true
	}
	return h.nowFunc().Sub(h.failedAt) >= h.cooldown
}

func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.isHealthyLocked()
}

func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	h.healthy = true
	h.mu.Unlock()
}

func (h *HealthTracker) RecordFailure() {
	h.mu.Lock()
	h.healthy = false
	h.failedAt = h.nowFunc()
	h.failureCount++
	h.mu.Unlock()
}

// SetNowFunc overrides the time source.
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.nowFunc = fn
	h.mu.Unlock()
}

// Metrics returns a point-in-time snapshot safe to serialize.
func (h *HealthTracker) Metrics() health.Metrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := health.Metrics{FailureCount: h.failureCount}
	if h.failureCount > 0 {
		t := h.failedAt
		m.LastFailureAt = &t
	}

	m.Available = h.isHealthyLocked()
	if !h.healthy {
		until := h.failedAt.Add(h.cooldown)
		m.CooldownUntil = &until
	}
	return m
}

// Guarded wraps a Judge with a HealthTracker. By default it only records
// call outcomes, so every Invoke reaches the model. With WithFailFast, Invoke
// fails immediately with judge.upstream.failure while the tracker is in
// cooldown.
type Guarded struct {
	inner    Judge
	tracker  *HealthTracker
	failFast bool
}

var _ Judge = (*Guarded)(nil)

// GuardOption configures a Guarded judge.
type GuardOption func(*Guarded)

// WithFailFast skips the model while the tracker reports the judge unhealthy.
func WithFailFast() GuardOption {
	return func(g *Guarded) { g.failFast = true }
}

// Guard wraps j. A nil tracker gets one with DefaultCooldown.
func Guard(j Judge, tracker *HealthTracker, opts ...GuardOption) *Guarded {
	if tracker == nil {
		tracker, _ = NewHealthTracker(DefaultCooldown)
	}
	g := &Guarded{inner: j, tracker: tracker}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guarded) Name() string { return g.inner.Name() }

func (g *Guarded) Invoke(ctx context.Context, req Request) (string, error) {
	if g.failFast && !g.tracker.IsHealthy() {
		return "", recallerr.New(recallerr.CodeJudgeUpstreamFailure,
			"judge is cooling down after a failed call",
			recallerr.FieldProvider(g.inner.Name()))
	}

	out, err := g.inner.Invoke(ctx, req)
	if err != nil {
		// The caller's own deadline or cancellation says nothing about the model.
		if ctx.Err() == nil {
			g.tracker.RecordFailure()
		}
		return "", err
	}
	g.tracker.RecordSuccess()
	return out, nil
}

// Health reports the tracker snapshot.
func (g *Guarded) Health() health.Metrics {
	m := g.tracker.Metrics()
	m.FailFast = g.failFast
	return m
}
