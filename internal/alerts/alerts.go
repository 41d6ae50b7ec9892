// Package alerts is the boundary to the user-facing notification
// collaborator. Calls are fire-and-forget; nothing in the core consumes a
// return value.
package alerts

import (
	"accountwatch/internal/logger"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Notifier interface {
	Notify(message string, severity Severity)
}

// LogNotifier is the default collaborator: alerts land in the structured
// log until a real presentation layer subscribes.
type LogNotifier struct {
	log logger.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.New("alerts")}
}

func (n *LogNotifier) Notify(message string, severity Severity) {
	switch severity {
	case SeverityError:
		_ = n.log.Error(message)
	case SeverityWarning:
		n.log.Warn(message)
	default:
		n.log.Info(message, "severity", string(severity))
	}
}
