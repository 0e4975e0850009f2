package recorder

// ReadingRow records one retrieval attempt for a meter.
type ReadingRow struct {
	CustomerNo   string
	Balance      *float64 // nil when the fetch failed or no balance was found
	IsLow        bool
	UpdatedLabel string
	FetchOK      bool
}

// NotificationRow records one outbound message decision.
type NotificationRow struct {
	Kind          string // "SUMMARY", "LOW_ALERT", "STATUS_CHANGE"
	CustomerCount int
	LowCount      int
	Delivered     bool
}

// Recorder persists reading and notification history for analysis.
type Recorder interface {
	RecordReading(row *ReadingRow) error
	RecordNotification(row *NotificationRow) error
	Close() error
}
