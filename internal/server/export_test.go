// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import "time"

// VisitorTable exposes the rate limiter's per-IP table to tests.
type VisitorTable struct{ t *visitorTable }

func NewVisitorTable(cfg RateLimitConfig) *VisitorTable {
	return &VisitorTable{t: &visitorTable{cfg: cfg, visitors: make(map[string]*visitor)}}
}

func (v *VisitorTable) Allow(ip string, now time.Time) bool { return v.t.allow(ip, now) }
func (v *VisitorTable) Sweep(now time.Time)                 { v.t.sweep(now) }
func (v *VisitorTable) Len() int                            { return v.t.len() }
