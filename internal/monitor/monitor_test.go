package monitor

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"MeterWatch/internal/model"
	"MeterWatch/internal/recorder"
	"MeterWatch/internal/state"
)

type fakeFetcher struct {
	readings map[string]model.BalanceReading
}

func (f *fakeFetcher) FetchReading(_ context.Context, cust string) model.BalanceReading {
	r, ok := f.readings[cust]
	if !ok {
		return model.BalanceReading{CustomerNo: cust, UpdatedLabel: "N/A", Err: errors.New("unknown meter")}
	}
	return r
}

func (f *fakeFetcher) Name() string { return "fake" }

type fakeNotifier struct {
	sent []string
	fail bool
}

func (f *fakeNotifier) SendWithRetry(_ context.Context, text string, _ int) error {
	if f.fail {
		return errors.New("send failed")
	}
	f.sent = append(f.sent, text)
	return nil
}

type fakeRecorder struct {
	readings      []recorder.ReadingRow
	notifications []recorder.NotificationRow
}

func (f *fakeRecorder) RecordReading(row *recorder.ReadingRow) error {
	f.readings = append(f.readings, *row)
	return nil
}

func (f *fakeRecorder) RecordNotification(row *recorder.NotificationRow) error {
	f.notifications = append(f.notifications, *row)
	return nil
}

func (f *fakeRecorder) Close() error { return nil }

func fptr(f float64) *float64 { return &f }

func tptr(t time.Time) *time.Time { return &t }

func newTestMonitor(t *testing.T, statePath string, opts Options, fetcher *fakeFetcher) (*Monitor, *fakeNotifier, *fakeRecorder) {
	t.Helper()
	if statePath == "" {
		statePath = filepath.Join(t.TempDir(), "state.json")
	}
	sm := state.NewManager(statePath, opts.Threshold, 6*time.Hour, 24*time.Hour)
	fn := &fakeNotifier{}
	fr := &fakeRecorder{}
	return New(context.Background(), fetcher, sm, fn, fr, opts), fn, fr
}

func threeMeterFetcher() *fakeFetcher {
	return &fakeFetcher{readings: map[string]model.BalanceReading{
		"A": {CustomerNo: "A", Balance: fptr(30), UpdatedLabel: "20 Oct 12:00 AM"},
		"B": {CustomerNo: "B", Balance: fptr(80), UpdatedLabel: "20 Oct 12:00 AM"},
	}}
}

func TestRunOnce_MultiMeterSummaryAndLowAlert(t *testing.T) {
	opts := Options{CustomerNumbers: []string{"A", "B", "C"}, Threshold: 50.0}
	mon, fn, fr := newTestMonitor(t, "", opts, threeMeterFetcher())

	mon.RunOnce()

	if len(fn.sent) != 2 {
		t.Fatalf("expected summary + low alert, got %d messages", len(fn.sent))
	}
	summary, alert := fn.sent[0], fn.sent[1]

	if !strings.Contains(summary, "⚠️ *Meter:* A") {
		t.Error("expected A marked low in summary")
	}
	if !strings.Contains(summary, "✅ *Meter:* B") {
		t.Error("expected B marked normal in summary")
	}
	if !strings.Contains(summary, "❌ *Meter:* C") {
		t.Error("expected C marked failed in summary")
	}
	if !strings.Contains(alert, "*Meter:* A") || strings.Contains(alert, "*Meter:* B") {
		t.Error("low alert must contain exactly the low meters")
	}

	if len(fr.readings) != 3 {
		t.Fatalf("expected 3 reading rows, got %d", len(fr.readings))
	}
	if fr.readings[0].CustomerNo != "A" || fr.readings[1].CustomerNo != "B" || fr.readings[2].CustomerNo != "C" {
		t.Error("expected reading rows in input order")
	}
	if !fr.readings[0].IsLow || fr.readings[1].IsLow {
		t.Error("unexpected classification in reading rows")
	}
	if fr.readings[2].FetchOK {
		t.Error("expected fetch_ok false for failed meter")
	}

	st := mon.States.States()
	if st["A"].LastNotification == nil {
		t.Error("expected LastNotification advanced after delivered summary")
	}
}

func TestRunOnce_FirstRunAlwaysNotifies(t *testing.T) {
	opts := Options{CustomerNumbers: []string{"B"}, Threshold: 50.0, ThrottleEnabled: true}
	mon, fn, _ := newTestMonitor(t, "", opts, threeMeterFetcher())

	mon.RunOnce()

	if len(fn.sent) != 1 {
		t.Fatalf("expected first run to notify, got %d messages", len(fn.sent))
	}
}

func TestRunOnce_ThrottleSuppressesRecentNotification(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	seed := map[string]model.MeterState{
		"B": {
			LastBalance:      fptr(80),
			IsLowBalance:     false,
			LastUpdated:      time.Now(),
			LastNotification: tptr(time.Now().Add(-1 * time.Hour)),
		},
	}
	if err := state.Save(statePath, seed); err != nil {
		t.Fatal(err)
	}

	opts := Options{CustomerNumbers: []string{"B"}, Threshold: 50.0, ThrottleEnabled: true}
	mon, fn, fr := newTestMonitor(t, statePath, opts, threeMeterFetcher())

	mon.RunOnce()

	if len(fn.sent) != 0 {
		t.Fatalf("expected throttled run to stay silent, got %d messages", len(fn.sent))
	}
	if len(fr.readings) != 1 {
		t.Error("throttled run must still record the reading")
	}

	st := mon.States.States()["B"]
	if st.LastNotification == nil || !st.LastNotification.Equal(*seed["B"].LastNotification) {
		t.Error("throttled run must not advance LastNotification")
	}
	if st.LastBalance == nil || *st.LastBalance != 80 {
		t.Error("throttled run must still update the stored balance")
	}
}

func TestRunOnce_CrossingAppendsStatusChange(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	seed := map[string]model.MeterState{
		"B": {
			LastBalance:      fptr(30),
			IsLowBalance:     true,
			LastUpdated:      time.Now().Add(-25 * time.Hour),
			LastNotification: tptr(time.Now().Add(-25 * time.Hour)),
		},
	}
	if err := state.Save(statePath, seed); err != nil {
		t.Fatal(err)
	}

	opts := Options{CustomerNumbers: []string{"B"}, Threshold: 50.0, ThrottleEnabled: true}
	mon, fn, _ := newTestMonitor(t, statePath, opts, threeMeterFetcher())

	mon.RunOnce()

	if len(fn.sent) != 2 {
		t.Fatalf("expected summary + status change, got %d messages", len(fn.sent))
	}
	if !strings.Contains(fn.sent[1], "status changed") || !strings.Contains(fn.sent[1], "NORMAL") {
		t.Errorf("expected low-to-normal crossing alert, got: %s", fn.sent[1])
	}

	if mon.States.States()["B"].IsLowBalance {
		t.Error("expected stored classification updated to normal")
	}
}

func TestRunOnce_NoCrossingNoStatusChange(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	seed := map[string]model.MeterState{
		"B": {
			LastBalance:      fptr(75),
			IsLowBalance:     false,
			LastUpdated:      time.Now().Add(-25 * time.Hour),
			LastNotification: tptr(time.Now().Add(-25 * time.Hour)),
		},
	}
	if err := state.Save(statePath, seed); err != nil {
		t.Fatal(err)
	}

	opts := Options{CustomerNumbers: []string{"B"}, Threshold: 50.0, ThrottleEnabled: true}
	mon, fn, _ := newTestMonitor(t, statePath, opts, threeMeterFetcher())

	mon.RunOnce()

	for _, msg := range fn.sent {
		if strings.Contains(msg, "status changed") {
			t.Error("unchanged classification must not produce a crossing alert")
		}
	}
}

func TestRunOnce_SendFailureDoesNotAdvanceCadence(t *testing.T) {
	opts := Options{CustomerNumbers: []string{"B"}, Threshold: 50.0}
	mon, fn, fr := newTestMonitor(t, "", opts, threeMeterFetcher())
	fn.fail = true

	mon.RunOnce()

	if st := mon.States.States()["B"]; st.LastNotification != nil {
		t.Error("failed send must not advance LastNotification")
	}
	if len(fr.notifications) != 1 || fr.notifications[0].Delivered {
		t.Error("expected one undelivered SUMMARY row")
	}
}

func TestHandleCommand(t *testing.T) {
	opts := Options{CustomerNumbers: []string{"B"}, Threshold: 50.0}
	mon, fn, _ := newTestMonitor(t, "", opts, threeMeterFetcher())

	if reply := mon.HandleCommand("/check"); reply != "" {
		t.Errorf("expected empty reply from /check, got %q", reply)
	}
	if len(fn.sent) == 0 {
		t.Error("expected /check to trigger a cycle")
	}

	if reply := mon.HandleCommand("/status"); !strings.Contains(reply, "B") {
		t.Errorf("expected /status to list meter B, got %q", reply)
	}
	if reply := mon.HandleCommand("bogus"); !strings.Contains(reply, "Available commands") {
		t.Errorf("expected help text, got %q", reply)
	}
}
