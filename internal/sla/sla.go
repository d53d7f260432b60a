// Package sla computes SLA compliance on demand. Nothing here is
// persisted — every call recomputes from the heartbeat window.
package sla

import (
	"context"
	"time"

	"github.com/watchpost/watchpost/internal/db"
)

const (
	StatusBreached = "breached"
	StatusAtRisk   = "at_risk"
	StatusMet      = "met"
	StatusUnknown  = "unknown"
)

// Report is the computed SLA state for one monitor's current period.
type Report struct {
	PeriodDays       int
	Target           float64
	CurrentPct       float64
	TotalBudgetSecs  float64
	RemainingBudget  float64
	DowntimeEstimate float64
	Status           string
	SampleCount      int
}

// Compute evaluates a monitor's SLA over its configured period ending now.
// If the monitor has no sla_target/sla_period_days configured, ok is
// false.
func Compute(ctx context.Context, store *db.Store, m db.Monitor, now time.Time) (Report, bool, error) {
	if m.SLATarget == nil || m.SLAPeriodDays == nil {
		return Report{}, false, nil
	}
	periodDays := *m.SLAPeriodDays
	target := *m.SLATarget

	periodStart := now.AddDate(0, 0, -periodDays)
	elapsedSeconds := now.Sub(periodStart).Seconds()
	totalBudgetSecs := float64(periodDays) * 86400 * (1 - target/100)

	heartbeats, err := store.LastHeartbeatsSince(ctx, m.ID, periodStart)
	if err != nil {
		return Report{}, false, err
	}

	total := len(heartbeats)
	if total == 0 {
		return Report{
			PeriodDays:      periodDays,
			Target:          target,
			TotalBudgetSecs: totalBudgetSecs,
			Status:          StatusUnknown,
		}, true, nil
	}

	successful := 0
	for _, hb := range heartbeats {
		if hb.Status == db.StatusUp || hb.Status == db.StatusDegraded || hb.Status == db.StatusMaintenance {
			successful++
		}
	}

	currentPct := 100 * float64(successful) / float64(total)
	downtimeEstimate := elapsedSeconds * (1 - float64(successful)/float64(total))
	remainingBudget := totalBudgetSecs - downtimeEstimate

	status := StatusMet
	switch {
	case currentPct < target:
		status = StatusBreached
	case totalBudgetSecs > 0 && remainingBudget < 0.25*totalBudgetSecs:
		status = StatusAtRisk
	}

	return Report{
		PeriodDays:       periodDays,
		Target:           target,
		CurrentPct:       currentPct,
		TotalBudgetSecs:  totalBudgetSecs,
		RemainingBudget:  remainingBudget,
		DowntimeEstimate: downtimeEstimate,
		Status:           status,
		SampleCount:      total,
	}, true, nil
}
