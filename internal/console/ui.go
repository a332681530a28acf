package console

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kirinyoku/busdesk/internal/observability"
)

var (
	ErrBusy     = errors.New("operation already in progress")
	ErrDeclined = errors.New("confirmation declined")
)

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice is a toast shown to the operator after a terminal outcome.
type Notice struct {
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
}

// Prompt asks the operator to confirm a destructive action.
type Prompt struct {
	Title        string `json:"title"`
	Body         string `json:"body"`
	ConfirmLabel string `json:"confirm_label"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

type Prompter interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

// Host is the view coordinator as seen by the managers.
type Host interface {
	ScrollIntoView(target string)
	SchedulesChanged(ctx context.Context, routeIDs ...int64)
	RouteRemoved(ctx context.Context, routeID int64)
}

type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// MultiNotifier fans a notice out to every non-nil notifier.
func MultiNotifier(notifiers ...Notifier) Notifier {
	return NotifierFunc(func(ctx context.Context, n Notice) {
		for _, x := range notifiers {
			if x != nil {
				x.Notify(ctx, n)
			}
		}
	})
}

// LogNotifier mirrors notices into the log.
func LogNotifier(logger *slog.Logger) Notifier {
	return NotifierFunc(func(ctx context.Context, n Notice) {
		observability.NoticesTotal.WithLabelValues(string(n.Severity)).Inc()

		level := slog.LevelInfo
		if n.Severity == SeverityError {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "notice", "severity", n.Severity, "title", n.Title, "message", n.Message)
	})
}

// Failure builds an error notice, preferring the server supplied message.
func Failure(title, fallback, serverMsg string) Notice {
	msg := fallback
	if serverMsg != "" {
		msg = serverMsg
	}
	return Notice{Severity: SeverityError, Title: title, Message: msg}
}

func Success(title, msg string) Notice {
	return Notice{Severity: SeveritySuccess, Title: title, Message: msg}
}
