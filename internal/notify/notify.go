// Package notify carries user-visible notifications (the console's toasts)
// from controllers to whatever presents them.
package notify

import (
	"log/slog"
	"sync"
)

// Level distinguishes ordinary notifications from destructive ones.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is a single transient message shown to the user.
type Notification struct {
	Level   Level  `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Notifier receives notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// Info builds an informational notification.
func Info(title, message string) Notification {
	return Notification{Level: LevelInfo, Title: title, Message: message}
}

// Error builds a destructive notification.
func Error(title, message string) Notification {
	return Notification{Level: LevelError, Title: title, Message: message}
}

// Recorder collects notifications in memory. It is safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

// Notify appends n to the recorder.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Drain returns the recorded notifications and resets the recorder.
func (r *Recorder) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.items
	r.items = nil
	return out
}

// Logger writes notifications to a structured logger.
type Logger struct {
	Log *slog.Logger
}

// Notify logs n at info or error level.
func (l Logger) Notify(n Notification) {
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	if n.Level == LevelError {
		log.Error(n.Title, "message", n.Message)
		return
	}
	log.Info(n.Title, "message", n.Message)
}

// Discard drops every notification.
type Discard struct{}

// Notify does nothing.
func (Discard) Notify(Notification) {}
