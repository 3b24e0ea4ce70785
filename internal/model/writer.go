package model

// Writer defines a generic interface for emitting a correlation report.
type Writer interface {
	// Name identifies the writer in logs.
	Name() string

	// Write persists or publishes the report.
	Write(report *Report) error
}

// Notifier defines a generic interface for sending notifications.
type Notifier interface {
	Send(subject, body string) error
}
