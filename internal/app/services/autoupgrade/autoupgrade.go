// Package autoupgrade implements §4.5's Auto-Upgrade Manager: a small
// per-(user, program) state machine driven by reserve credits and
// partner-count changes, processed by a background ticker worker. The
// worker's shape — ticker loop, mutex-guarded per-item backoff schedule,
// dead-letter promotion after a retry budget is exhausted — is grounded on
// the reference settlement poller's structure, adapted onto this module's
// plain system.Service lifecycle instead of that poller's heavier
// service-framework/tracer/observation-hook stack.
package autoupgrade

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/core/service"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/catalog"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/ledger"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/queue"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/services/placement"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/storage"
	"github.com/ayon178/bitgpt-backend-sub002/internal/metrics"
	"github.com/ayon178/bitgpt-backend-sub002/pkg/logger"
)

// Activator is the one placement capability the manager needs: running an
// auto-activation once an item's reserve is ready (§4.5 "on processing").
type Activator interface {
	ActivateAuto(ctx context.Context, userID string, p program.Program, targetSlot int, amount float64, currency, correlationID, sourceEventID string) (placement.Outcome, error)
}

// ReserveLedger is the reserve slice of services/ledger.Writer the manager
// needs to actually spend what it checked (§4.5 "on processing, atomically:
// debit reserve by price(T), append SlotActivation"). Mirrors
// services/globalphase's ReserveLedger hook exactly.
type ReserveLedger interface {
	DebitReserve(ctx context.Context, userID string, p program.Program, targetSlot int, amount float64, currency string, reason ledger.ReasonCode, correlationID, sourceEventID string) (ledger.Entry, ledger.ReserveBalance, error)
}

// microRetryPolicy bounds the in-process retry `process` gives one item
// before falling back to the queue's own tick-scheduled backoff
// (`scheduleNext`/`shouldAttempt`): transient storage errors are worth an
// immediate second attempt within the same tick, but sustained failures
// (insufficient reserve, a down dependency) need the longer inter-tick
// backoff instead of blocking the ticker goroutine.
var microRetryPolicy = service.RetryPolicy{
	Attempts:       2,
	InitialBackoff: 100 * time.Millisecond,
	Multiplier:     1,
}

// Manager drives the auto-upgrade queue. It implements both
// placement.AutoUpgradeArmer (the arming side) and system.Service (the
// background processing side).
type Manager struct {
	queue    storage.QueueStore
	balances storage.LedgerStore
	reserve  ReserveLedger
	cat      *catalog.Catalog
	activate Activator
	log      *logger.Logger
	currency string

	interval    time.Duration
	maxAttempts int

	mu          sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	running     bool
	nextAttempt map[string]time.Time
}

// New builds a Manager. A single Manager handles all three programs: each
// queue item carries its own Program, and the currency of its reserve
// debit and activation is derived from it (BNB for Binary, USDT for
// Matrix, USD for Global). reserveLedger is typically the same *services/ledger.Writer passed to
// services/globalphase, so both reserve-spending paths share one
// idempotency/replay-guard implementation.
func New(queueStore storage.QueueStore, ledgerStore storage.LedgerStore, reserveLedger ReserveLedger, cat *catalog.Catalog, activator Activator, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefault("autoupgrade")
	}
	return &Manager{
		queue: queueStore, balances: ledgerStore, reserve: reserveLedger, cat: cat, activate: activator, log: log,
		interval: 5 * time.Second, maxAttempts: 5,
		nextAttempt: make(map[string]time.Time),
	}
}

// WithPollInterval overrides the ticker cadence.
func (m *Manager) WithPollInterval(d time.Duration) *Manager {
	if d > 0 {
		m.interval = d
	}
	return m
}

// WithMaxAttempts overrides the retry budget before an item goes
// terminally `failed` (§4.5 "Retries").
func (m *Manager) WithMaxAttempts(n int) *Manager {
	if n > 0 {
		m.maxAttempts = n
	}
	return m
}

// Name implements system.Service.
func (m *Manager) Name() string { return "auto-upgrade-manager" }

// Start implements system.Service: launches the ticker loop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				m.tick(runCtx)
			}
		}
	}()
	m.log.Info("auto-upgrade manager started")
	return nil
}

// Stop implements system.Service: cancels the loop and waits for it to
// exit, or for ctx to expire.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// ArmFromReserveCredit implements placement.AutoUpgradeArmer's reserve
// trigger (§4.5): after any reserve credit, if the accumulated balance now
// covers the target slot's price, enqueue (idempotently) a pending item.
func (m *Manager) ArmFromReserveCredit(ctx context.Context, userID string, p program.Program, targetSlot int) error {
	price, err := m.cat.Price(p, targetSlot)
	if err != nil {
		return err
	}
	balance, err := m.balances.GetReserveBalance(ctx, userID, p, targetSlot)
	if err != nil {
		return err
	}
	if balance.Amount+1e-8 < price {
		return nil
	}
	return m.enqueueIfAbsent(ctx, userID, p, targetSlot, price, balance.Amount, queue.TriggerReserve)
}

// ArmFromPartnerCount implements placement.AutoUpgradeArmer's binary
// partner trigger (§4.5): transitioning from 1 to 2 counted partners at
// the current slot arms the next slot.
func (m *Manager) ArmFromPartnerCount(ctx context.Context, userID string, p program.Program, currentSlot, directCount int) error {
	if directCount != 2 {
		return nil
	}
	target := currentSlot + 1
	price, err := m.cat.Price(p, target)
	if err != nil {
		return nil // beyond the program's slot table; nothing to arm
	}
	balance, err := m.balances.GetReserveBalance(ctx, userID, p, target)
	if err != nil {
		return err
	}
	return m.enqueueIfAbsent(ctx, userID, p, target, price, balance.Amount, queue.TriggerBinaryPartner)
}

func (m *Manager) enqueueIfAbsent(ctx context.Context, userID string, p program.Program, targetSlot int, cost, available float64, trigger queue.TriggerKind) error {
	existing, err := m.queue.ListByUserProgram(ctx, userID, p)
	if err != nil {
		return err
	}
	for _, item := range existing {
		if item.TargetSlot == targetSlot && (item.Status == queue.StatusPending || item.Status == queue.StatusProcessing) {
			return nil
		}
	}
	_, err = m.queue.Enqueue(ctx, queue.Item{
		UserID: userID, Program: p, CurrentSlot: targetSlot - 1, TargetSlot: targetSlot,
		Cost: cost, Available: available, Status: queue.StatusPending,
		TriggerKind: trigger, ArmedAt: time.Now(),
	})
	return err
}

// tick drains pending items whose backoff schedule has elapsed, processing
// each one: debit reserve, activate, mark terminal.
func (m *Manager) tick(ctx context.Context) {
	items, err := m.queue.ListPending(ctx, 100)
	if err != nil {
		m.log.WithError(err).Warn("list pending auto-upgrade items failed")
		return
	}
	metrics.SetAutoUpgradeQueueDepth("all", len(items))
	now := time.Now()
	for _, item := range items {
		if !item.Ready() {
			continue
		}
		if !m.shouldAttempt(item.ID, now) {
			continue
		}
		m.process(ctx, item)
	}
}

// process funds and runs one item's auto-activation (§4.5 "on processing,
// atomically: debit reserve by price(T), append SlotActivation"): debit the
// reserve, activate, mark terminal. The debit and the activation use
// distinct correlation IDs — sharing one would make runActivation's own
// replay guard mistake the debit's ledger entry for a prior activation
// attempt on retry.
func (m *Manager) process(ctx context.Context, item queue.Item) {
	item.Status = queue.StatusProcessing
	item, err := m.queue.UpdateItem(ctx, item)
	if err != nil {
		m.log.WithError(err).WithField("item_id", item.ID).Warn("mark processing failed")
		return
	}

	currency := defaultCurrency(item.Program)
	nonce := time.Now().UnixNano()
	debitCorrelationID := fmt.Sprintf("%s-%s-%d-auto_upgrade_debit-%d", item.Program, item.UserID, item.TargetSlot, nonce)
	if _, _, err := m.reserve.DebitReserve(ctx, item.UserID, item.Program, item.TargetSlot, item.Cost, currency,
		ledger.ReasonReserveDebitAutoActivate, debitCorrelationID, debitCorrelationID); err != nil {
		m.failOrRetry(ctx, item, err)
		return
	}

	activateCorrelationID := fmt.Sprintf("%s-%s-%d-auto_upgrade-%d", item.Program, item.UserID, item.TargetSlot, nonce)
	actErr := service.Retry(ctx, microRetryPolicy, func() error {
		_, err := m.activate.ActivateAuto(ctx, item.UserID, item.Program, item.TargetSlot, item.Cost, currency, activateCorrelationID, activateCorrelationID)
		return err
	})
	if actErr != nil {
		m.failOrRetry(ctx, item, actErr)
		return
	}

	item.Status = queue.StatusCompleted
	item.ProcessedAt = time.Now()
	if _, err := m.queue.UpdateItem(ctx, item); err != nil {
		m.log.WithError(err).WithField("item_id", item.ID).Warn("mark completed failed")
	}
	m.clearSchedule(item.ID)
}

// failOrRetry records a processing failure against item's retry budget,
// either scheduling the next tick-level attempt or promoting the item to
// terminal `failed` once maxAttempts is exhausted (§4.5 "Retries").
func (m *Manager) failOrRetry(ctx context.Context, item queue.Item, cause error) {
	item.RetryCount++
	if item.RetryCount >= m.maxAttempts {
		item.Status = queue.StatusFailed
		item.FailedReason = cause.Error()
		m.clearSchedule(item.ID)
	} else {
		item.Status = queue.StatusPending
		m.scheduleNext(item.ID)
	}
	if _, err := m.queue.UpdateItem(ctx, item); err != nil {
		m.log.WithError(err).WithField("item_id", item.ID).Warn("record retry failed")
	}
}

func (m *Manager) shouldAttempt(id string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, ok := m.nextAttempt[id]
	return !ok || now.After(next)
}

func (m *Manager) scheduleNext(id string) {
	m.mu.Lock()
	m.nextAttempt[id] = time.Now().Add(m.interval)
	m.mu.Unlock()
}

func (m *Manager) clearSchedule(id string) {
	m.mu.Lock()
	delete(m.nextAttempt, id)
	m.mu.Unlock()
}

func defaultCurrency(p program.Program) string {
	switch p {
	case program.Binary:
		return "BNB"
	case program.Matrix:
		return "USDT"
	default:
		return "USD"
	}
}
