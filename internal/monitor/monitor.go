package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"MeterWatch/internal/model"
	"MeterWatch/internal/notifier"
	"MeterWatch/internal/portal"
	"MeterWatch/internal/recorder"
	"MeterWatch/internal/state"

	"github.com/robfig/cron/v3"
)

// Notifier is the outbound message channel. Satisfied by
// notifier.TelegramNotifier.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Options configures a Monitor.
type Options struct {
	CustomerNumbers []string
	Threshold       float64
	ThrottleEnabled bool
}

// Monitor runs the fetch/classify/notify cycle for the configured meters.
type Monitor struct {
	Cron     *cron.Cron
	Fetcher  portal.Fetcher
	States   *state.Manager
	Notifier Notifier
	Recorder recorder.Recorder
	Opts     Options
	Ctx      context.Context
}

// New creates a Monitor.
func New(ctx context.Context, fetcher portal.Fetcher, states *state.Manager, n Notifier, rec recorder.Recorder, opts Options) *Monitor {
	return &Monitor{
		Cron:     cron.New(cron.WithSeconds()),
		Fetcher:  fetcher,
		States:   states,
		Notifier: n,
		Recorder: rec,
		Opts:     opts,
		Ctx:      ctx,
	}
}

// Register adds the periodic balance check to the cron schedule.
func (m *Monitor) Register(cronSpec string) error {
	if _, err := m.Cron.AddFunc(cronSpec, m.RunOnce); err != nil {
		return fmt.Errorf("register balance check: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (m *Monitor) Start() {
	m.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (m *Monitor) Stop() {
	m.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunOnce executes one full check cycle: sequential fetch per meter in
// input order, history recording, the notification decision, and the state
// update. A failure for one meter never aborts the others; a failed send
// never aborts recording or state persistence.
func (m *Monitor) RunOnce() {
	log.Println("[INFO] running balance check")

	readings := make([]model.BalanceReading, 0, len(m.Opts.CustomerNumbers))
	for _, cust := range m.Opts.CustomerNumbers {
		r := m.Fetcher.FetchReading(m.Ctx, cust)
		if r.Err != nil {
			log.Printf("[ERROR] fetch %s: %v", cust, r.Err)
		}
		readings = append(readings, r)
		m.recordReading(&r)
	}

	var low []model.BalanceReading
	for _, r := range readings {
		if r.HasBalance() && m.States.IsLow(r.Balance) {
			low = append(low, r)
		}
	}

	// With throttling off every run notifies; with it on, one meter due
	// for an update is enough to send the whole summary.
	notify := true
	if m.Opts.ThrottleEnabled {
		notify = false
		for _, r := range readings {
			if m.States.ShouldNotify(r.CustomerNo, m.States.IsLow(r.Balance)) {
				notify = true
				break
			}
		}
	}

	delivered := false
	if notify {
		summary := notifier.FormatSummary(readings, m.Opts.Threshold)
		if err := m.Notifier.SendWithRetry(m.Ctx, summary, 3); err != nil {
			log.Printf("[ERROR] send summary: %v", err)
		} else {
			delivered = true
		}
		m.recordNotification("SUMMARY", len(readings), len(low), delivered)

		if delivered && len(low) > 0 {
			alert := notifier.FormatLowBalanceAlert(low)
			ok := true
			if err := m.Notifier.SendWithRetry(m.Ctx, alert, 3); err != nil {
				log.Printf("[ERROR] send low-balance alert: %v", err)
				ok = false
			}
			m.recordNotification("LOW_ALERT", len(readings), len(low), ok)
		}
	} else {
		log.Println("[INFO] skipping notification, recent update already sent")
	}

	// Crossing check must precede the state overwrite. LastNotification
	// only advances when the summary actually went out, so a failed send
	// retries naturally on the next run.
	now := time.Now()
	for _, r := range readings {
		isLow := m.States.IsLow(r.Balance)
		if delivered && m.States.Crossed(r.CustomerNo, isLow) {
			msg := notifier.FormatStatusChange(r.CustomerNo, isLow)
			ok := true
			if err := m.Notifier.SendWithRetry(m.Ctx, msg, 3); err != nil {
				log.Printf("[ERROR] send status-change alert: %v", err)
				ok = false
			}
			m.recordNotification("STATUS_CHANGE", 1, len(low), ok)
		}

		var notifiedAt *time.Time
		if delivered {
			notifiedAt = &now
		}
		m.States.Record(r.CustomerNo, r.Balance, isLow, notifiedAt)
	}

	log.Printf("[INFO] balance check complete: %d meters, %d low, notified=%v",
		len(readings), len(low), delivered)
}

// HandleCommand processes a user command and returns a reply.
func (m *Monitor) HandleCommand(command string) string {
	switch command {
	case "/check":
		m.RunOnce()
		return ""
	case "/status":
		return notifier.FormatStates(m.States.States())
	default:
		return "Available commands:\n• /check — run a balance check now\n• /status — show saved meter state"
	}
}

func (m *Monitor) recordReading(r *model.BalanceReading) {
	row := &recorder.ReadingRow{
		CustomerNo:   r.CustomerNo,
		Balance:      r.Balance,
		IsLow:        m.States.IsLow(r.Balance),
		UpdatedLabel: r.UpdatedLabel,
		FetchOK:      r.Err == nil,
	}
	if err := m.Recorder.RecordReading(row); err != nil {
		log.Printf("[ERROR] record reading: %v", err)
	}
}

func (m *Monitor) recordNotification(kind string, customers, lowCount int, delivered bool) {
	if err := m.Recorder.RecordNotification(&recorder.NotificationRow{
		Kind:          kind,
		CustomerCount: customers,
		LowCount:      lowCount,
		Delivered:     delivered,
	}); err != nil {
		log.Printf("[ERROR] record notification: %v", err)
	}
}
