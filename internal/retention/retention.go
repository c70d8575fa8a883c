// Package retention prunes messages older than a configured period on a
// cron schedule.
package retention

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"

	"lucerna/pkg/config"
	"lucerna/pkg/logger"
	"lucerna/pkg/store"
)

// Start starts the retention scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, cfg *config.Config, st *store.Store) (context.CancelFunc, error) {
	ret := cfg.Retention

	// if retention is not enabled, return no-op cancel
	if !ret.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	period, err := ParsePeriod(ret.Period)
	if err != nil {
		logger.Error("retention_invalid_period", "period", ret.Period, "error", err)
		return nil, err
	}

	// map empty cron to default daily @02:00
	cronExpr := ret.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", ret.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", ret.Cron)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "period", ret.Period)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, st, period, cronExpr)
	return cancel, nil
}

// ParsePeriod accepts Go durations ("720h") plus day suffixes ("30d").
func ParsePeriod(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("retention period is empty")
	}
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid retention period: %s", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid retention period: %s", s)
	}
	return d, nil
}

// runScheduler uses gronx to compute the next tick for the configured cron
// expression and sleeps until that time.
func runScheduler(ctx context.Context, st *store.Store, period time.Duration, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			// fallback sleep then retry
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				logger.Info("retention_scheduler_stopping")
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			runOnce(st, period)
			// small sleep to avoid a tight loop at the tick boundary
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				logger.Info("retention_scheduler_stopping")
				return
			}
			continue
		}

		select {
		case <-time.After(wait):
			runOnce(st, period)
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

func runOnce(st *store.Store, period time.Duration) {
	cutoff := time.Now().UTC().Add(-period)
	n, err := st.DeleteOlderThan(cutoff)
	if err != nil {
		logger.Error("retention_run_error", "error", err)
		return
	}
	logger.Info("retention_run_complete", "deleted", n, "cutoff", cutoff.Format(time.RFC3339))
}
