// Package auditsink defines the mutation-audit contract and a default
// implementation that records through the structured logger.
package auditsink

import (
    "time"

    "github.com/sirupsen/logrus"

    "github.com/mst-edu/idm-infra/pkg/logger"
)

// Event is one mutation record: what happened, to what, and whether it
// succeeded. Detail holds operation-specific fields, or is nil (e.g. the
// destination container for a moveUser call, or the job name for a
// table-sync row mutation).
type Event struct {
    Operation string
    Target    string
    Success   bool
    Detail    map[string]interface{}
    At        time.Time
}

// AuditSink records a completed mutation. Implementations are expected
// to be non-blocking and never propagate failures back into the caller
// that emitted the event.
type AuditSink interface {
    Record(event Event)
}

// LoggerSink writes events through pkg/logger at info (success) or
// warn (failure) level. It is the default sink so the module can run
// without a dedicated syslog/SIEM endpoint wired in.
type LoggerSink struct{}

func NewLoggerSink() *LoggerSink {
    return &LoggerSink{}
}

func (s *LoggerSink) Record(event Event) {
    entry := logger.WithField("operation", event.Operation).WithFields(fieldsOf(event))

    if event.Success {
        entry.Info("audit: operation succeeded")
        return
    }
    entry.Warn("audit: operation failed")
}

func fieldsOf(event Event) logrus.Fields {
    f := make(logrus.Fields, len(event.Detail)+2)
    for k, v := range event.Detail {
        f[k] = v
    }
    f["target"] = event.Target
    f["at"] = event.At
    return f
}
