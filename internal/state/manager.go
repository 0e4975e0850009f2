package state

import (
	"log"
	"sync"
	"time"

	"MeterWatch/internal/model"
)

// Manager owns the low-balance classification, the notification-throttle
// decision, and the persisted per-meter state behind them.
type Manager struct {
	mu             sync.Mutex
	path           string
	states         map[string]model.MeterState
	threshold      float64
	lowInterval    time.Duration
	normalInterval time.Duration
	now            func() time.Time
}

// NewManager loads (or initializes) per-meter state from disk.
func NewManager(path string, threshold float64, lowInterval, normalInterval time.Duration) *Manager {
	states, err := Load(path)
	if err != nil {
		log.Printf("[WARN] load meter state: %v, starting fresh", err)
	}
	return &Manager{
		path:           path,
		states:         states,
		threshold:      threshold,
		lowInterval:    lowInterval,
		normalInterval: normalInterval,
		now:            time.Now,
	}
}

// IsLow reports whether a balance is below the low-balance threshold.
// A missing balance is never low.
func (m *Manager) IsLow(balance *float64) bool {
	return model.IsLowBalance(balance, m.threshold)
}

// ShouldNotify returns true on the meter's first-ever run, or once the
// elapsed time since the last notification meets the interval for the
// current classification. The interval follows the new classification, so
// a drop to low immediately adopts the shorter cadence.
func (m *Manager) ShouldNotify(custNo string, isLowNow bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[custNo]
	if !ok || st.LastNotification == nil {
		return true
	}
	interval := m.normalInterval
	if isLowNow {
		interval = m.lowInterval
	}
	return m.now().Sub(*st.LastNotification) >= interval
}

// Crossed reports whether the meter's classification changed since the
// previous run. A meter with no prior state has not crossed.
func (m *Manager) Crossed(custNo string, isLowNow bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[custNo]
	return ok && st.IsLowBalance != isLowNow
}

// Record overwrites the meter's state and persists the whole map, stamping
// the current wall-clock time. When notifiedAt is nil the previous
// notification timestamp is kept, so a throttled or failed send does not
// reset the cadence. Save errors are logged, never fatal.
func (m *Manager) Record(custNo string, balance *float64, isLow bool, notifiedAt *time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	last := m.states[custNo].LastNotification
	if notifiedAt != nil {
		last = notifiedAt
	}
	m.states[custNo] = model.MeterState{
		LastBalance:      balance,
		IsLowBalance:     isLow,
		LastUpdated:      m.now(),
		LastNotification: last,
	}
	if err := Save(m.path, m.states); err != nil {
		log.Printf("[ERROR] save meter state: %v", err)
	}
}

// States returns a copy of the current per-meter state map.
func (m *Manager) States() map[string]model.MeterState {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]model.MeterState, len(m.states))
	for k, v := range m.states {
		out[k] = v
	}
	return out
}
