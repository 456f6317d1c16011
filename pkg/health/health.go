// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package health holds the judge availability snapshot served on /health.
package health

import "time"

// Status values reported by the health endpoint.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// Metrics is a point-in-time view of a judge's failure tracker. A judge is
// unavailable for the configured cooldown after its most recent failed call.
type Metrics struct {
	FailureCount  int64      `json:"failure_count" doc:"Judge calls that failed since startup"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty" doc:"When the most recent judge call failed"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty" doc:"End of the cooldown that follows the last failure"`
	Available     bool       `json:"available" doc:"False during the cooldown"`
	// FailFast reports whether judge calls are skipped, and scored as
	// undetermined, while unavailable.
	FailFast bool `json:"fail_fast" doc:"Whether judge calls are skipped during the cooldown"`
}

// Status is StatusDegraded while the judge is cooling down.
func (m Metrics) Status() string {
	if !m.Available {
		return StatusDegraded
	}
	return StatusOK
}
