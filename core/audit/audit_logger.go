package audit

import (
	"fmt"
	"log"
	"os"
	"time"
)

// Event is one verification, authorization, or state-change record. Events
// never carry raw biometric values, only derived outcomes.
type Event struct {
	Timestamp time.Time
	EventType string // e.g. "SignatureVerification", "DeviceTokenVerification", "BlockCommit"
	EntityID  string // wallet address, device ID, or block hash
	Result    string // "success" or "failure"
	Reason    string
	Metadata  map[string]string
}

// Logger is the audit sink interface.
type Logger interface {
	LogEvent(event Event)
}

// StdoutLogger writes audit events to stdout.
type StdoutLogger struct{}

func NewStdoutLogger() Logger {
	return &StdoutLogger{}
}

func (l *StdoutLogger) LogEvent(event Event) {
	fmt.Printf("[%s] [%s] Entity: %s, Result: %s, Reason: %s, Metadata: %+v\n",
		event.Timestamp.Format(time.RFC3339), event.EventType, event.EntityID, event.Result, event.Reason, event.Metadata)
}

// FileLogger appends audit events to a log file, one line per event.
type FileLogger struct {
	logger *log.Logger
	file   *os.File
}

// NewFileLogger opens (or creates) the audit log at path.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{
		logger: log.New(f, "[AUDIT] ", log.LstdFlags|log.LUTC),
		file:   f,
	}, nil
}

func (l *FileLogger) LogEvent(event Event) {
	l.logger.Printf("%s | entity=%s result=%s reason=%s metadata=%+v",
		event.EventType, event.EntityID, event.Result, event.Reason, event.Metadata)
}

func (l *FileLogger) Close() error {
	return l.file.Close()
}

// Nop discards all events; used where audit is not configured.
type Nop struct{}

func (Nop) LogEvent(Event) {}
