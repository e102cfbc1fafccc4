package funds

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/ayon178/bitgpt-backend-sub002/pkg/logger"
)

// Scheduler drives the two genuinely periodic §4.7 payouts — the 30-day
// Newcomer Growth Support distribution and the daily Leadership Stipend
// payout — on a *cron.Cron, registered as a system.Service like every other
// background component.
type Scheduler struct {
	svc  *Service
	log  *logger.Logger
	cron *cron.Cron

	newcomerSpec string
	stipendSpec  string
}

// NewScheduler builds a Scheduler. Empty specs default to 30 days and
// daily respectively.
func NewScheduler(svc *Service, newcomerSpec, stipendSpec string, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("funds-scheduler")
	}
	if newcomerSpec == "" {
		newcomerSpec = "@every 720h"
	}
	if stipendSpec == "" {
		stipendSpec = "@daily"
	}
	return &Scheduler{svc: svc, log: log, newcomerSpec: newcomerSpec, stipendSpec: stipendSpec}
}

// Name implements system.Service.
func (sch *Scheduler) Name() string { return "funds-scheduler" }

// Start implements system.Service: registers both cron jobs and starts
// the scheduler's own goroutine.
func (sch *Scheduler) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(sch.newcomerSpec, func() {
		if err := sch.svc.NewcomerGrowthSupportTick(ctx); err != nil {
			sch.log.WithError(err).Warn("newcomer growth support tick failed")
		}
	}); err != nil {
		return err
	}
	if _, err := c.AddFunc(sch.stipendSpec, func() {
		if err := sch.svc.LeadershipStipendPayout(ctx); err != nil {
			sch.log.WithError(err).Warn("leadership stipend payout failed")
		}
	}); err != nil {
		return err
	}
	sch.cron = c
	c.Start()
	sch.log.Info("funds scheduler started")
	return nil
}

// Stop implements system.Service: stops the cron scheduler and waits for
// any in-flight job to finish, or for ctx to expire.
func (sch *Scheduler) Stop(ctx context.Context) error {
	if sch.cron == nil {
		return nil
	}
	stopCtx := sch.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
