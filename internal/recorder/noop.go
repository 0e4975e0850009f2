package recorder

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordReading(_ *ReadingRow) error           { return nil }
func (n *NoopRecorder) RecordNotification(_ *NotificationRow) error { return nil }
func (n *NoopRecorder) Close() error                                { return nil }
