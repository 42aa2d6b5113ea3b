package cron

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bher20/ebillmanager/internal/alerting"
	"github.com/bher20/ebillmanager/internal/billing"
	"github.com/bher20/ebillmanager/internal/metrics"
	"github.com/bher20/ebillmanager/internal/storage"
	"github.com/bher20/ebillmanager/pkg/logger"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

const (
	JobName = "billing_digest"
	// ScheduleSetting overrides the configured schedule when present in the settings table.
	ScheduleSetting = "digest_schedule"
	lockKey         = int64(0x6562696c6c) // "ebill"
	defaultInterval = 24 * time.Hour
	pollInterval    = 10 * time.Second
)

// NextRun interprets setting as integer seconds or a standard 5-field cron
// expression. Anything else falls back to a daily interval.
func NextRun(setting string, last time.Time) time.Time {
	if v, err := strconv.Atoi(setting); err == nil && v > 0 {
		return last.Add(time.Duration(v) * time.Second)
	}
	if sched, err := cron.ParseStandard(setting); err == nil {
		return sched.Next(last)
	}
	return last.Add(defaultInterval)
}

// ValidSchedule reports whether setting is accepted by NextRun without falling back.
func ValidSchedule(setting string) bool {
	if v, err := strconv.Atoi(setting); err == nil {
		return v > 0
	}
	_, err := cron.ParseStandard(setting)
	return err == nil
}

// DigestResult summarizes one digest run.
type DigestResult struct {
	Customers int
	Failed    []alerting.CustomerFailure
	ByStatus  map[storage.BillStatus]decimal.Decimal
}

// Digest periodically aggregates every customer's bills, publishes outstanding
// gauges and alerts on customers whose aggregation failed.
type Digest struct {
	Billing  *billing.Service
	Store    storage.Storage
	Alerter  *alerting.Alerter
	Log      *logger.Logger
	Schedule string
	Now      func() time.Time
}

func (d *Digest) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Digest) logger() *logger.Logger {
	if d.Log == nil {
		return logger.Nop()
	}
	return d.Log
}

// RunOnce executes one digest under the advisory lock and records the job row.
// It returns (nil, nil) when another worker holds the lock.
func (d *Digest) RunOnce(ctx context.Context) (*DigestResult, error) {
	log := d.logger()
	ctx = log.WithField(ctx, "job", JobName)
	started := d.now()

	release, ok, err := d.Store.AcquireAdvisoryLock(ctx, lockKey)
	if err != nil {
		metrics.UpdateJobMetrics(JobName, started, err)
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !ok {
		log.Info(ctx, "cron: advisory lock held by another worker, skipping run")
		return nil, nil
	}
	defer func() {
		if err := release(ctx); err != nil {
			metrics.LockReleaseFailuresTotal.WithLabelValues(JobName).Inc()
			log.Error(ctx, "cron: release advisory lock failed", err)
		}
	}()

	result, runErr := d.digest(ctx)

	metrics.UpdateJobMetrics(JobName, started, runErr)
	dur := time.Since(started)
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	} else if len(result.Failed) > 0 {
		errMsg = fmt.Sprintf("%d of %d customers failed", len(result.Failed), result.Customers)
	}
	if err := d.Store.UpdateScheduledJob(ctx, JobName, started, dur, runErr == nil && errMsg == "", errMsg); err != nil {
		log.Error(ctx, "cron: update scheduled_jobs failed", err)
	}
	if runErr != nil {
		return nil, runErr
	}

	if d.Alerter != nil {
		alert := alerting.DigestAlert{
			JobName:      JobName,
			TotalCount:   result.Customers,
			SuccessCount: result.Customers - len(result.Failed),
			FailedCount:  len(result.Failed),
			Duration:     dur,
			Failures:     result.Failed,
			Outstanding:  result.ByStatus[storage.BillPending].Add(result.ByStatus[storage.BillSent]),
			Overdue:      result.ByStatus[storage.BillOverdue],
			Timestamp:    started,
		}
		if err := d.Alerter.SendDigestAlert(ctx, alert); err != nil {
			log.Error(ctx, "cron: sending digest alert failed", err)
		}
	}
	log.Info(ctx, fmt.Sprintf("cron: job %s completed (customers=%d failed=%d duration=%s)",
		JobName, result.Customers, len(result.Failed), dur))
	return result, nil
}

func (d *Digest) digest(ctx context.Context) (*DigestResult, error) {
	entries, err := d.Billing.AggregateAll(ctx)
	if err != nil {
		return nil, err
	}
	res := &DigestResult{
		Customers: len(entries),
		ByStatus:  make(map[storage.BillStatus]decimal.Decimal),
	}
	for _, e := range entries {
		if e.Error != "" {
			res.Failed = append(res.Failed, alerting.CustomerFailure{
				CustomerID: e.Customer.ID,
				Name:       e.Customer.Name,
				Error:      e.Error,
			})
			continue
		}
		for status, amount := range e.Summary.AmountByStatus {
			res.ByStatus[status] = res.ByStatus[status].Add(amount)
		}
	}
	for _, status := range []storage.BillStatus{storage.BillPending, storage.BillSent, storage.BillPaid, storage.BillOverdue} {
		metrics.OutstandingAmount.WithLabelValues(string(status)).Set(res.ByStatus[status].InexactFloat64())
	}
	return res, nil
}

// Run loops until ctx is cancelled, running the digest on its schedule. The
// settings row named ScheduleSetting takes precedence over Schedule and is
// re-read on every poll.
func (d *Digest) Run(ctx context.Context) error {
	log := d.logger()
	schedule := d.Schedule
	if val, err := d.Store.GetSetting(ctx, ScheduleSetting); err == nil && val != "" {
		schedule = val
	}
	log.Info(ctx, fmt.Sprintf("cron: digest worker starting, schedule=%q", schedule))

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	nextRun := NextRun(schedule, d.now())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if val, err := d.Store.GetSetting(ctx, ScheduleSetting); err == nil && val != "" && val != schedule {
				log.Info(ctx, fmt.Sprintf("cron: schedule updated from %q to %q", schedule, val))
				schedule = val
				nextRun = NextRun(schedule, d.now())
			}
			if d.now().Before(nextRun) {
				continue
			}
			if _, err := d.RunOnce(ctx); err != nil {
				log.Error(ctx, "cron: digest run failed", err)
			}
			nextRun = NextRun(schedule, d.now())
		}
	}
}
