// Package notify is the fire-and-forget user notification channel. The
// sync layer only ever calls into it; rendering is someone else's job.
package notify

import (
	"log/slog"
	"sync"
)

// Level classifies a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notifier receives user-facing messages triggered by sync outcomes.
// Implementations must not block.
type Notifier interface {
	Success(msg string)
	Warning(msg string)
	Error(msg string)
	Info(msg string)
}

// SlogNotifier writes notifications to the structured log. It is the
// default sink when no UI is attached.
type SlogNotifier struct{}

func (SlogNotifier) Success(msg string) { SlogNotifier{}.log(LevelSuccess, msg) }
func (SlogNotifier) Warning(msg string) { SlogNotifier{}.log(LevelWarning, msg) }
func (SlogNotifier) Error(msg string)   { SlogNotifier{}.log(LevelError, msg) }
func (SlogNotifier) Info(msg string)    { SlogNotifier{}.log(LevelInfo, msg) }

func (SlogNotifier) log(level Level, msg string) {
	slog.Info("notification",
		"component", "notify",
		"level", string(level),
		"message", msg,
	)
}

// Message is one captured notification.
type Message struct {
	Level Level
	Text  string
}

// Collector records notifications for inspection. Used in tests and by
// UIs that poll for toasts.
type Collector struct {
	mu       sync.Mutex
	messages []Message
}

func (c *Collector) Success(msg string) { c.add(LevelSuccess, msg) }
func (c *Collector) Warning(msg string) { c.add(LevelWarning, msg) }
func (c *Collector) Error(msg string)   { c.add(LevelError, msg) }
func (c *Collector) Info(msg string)    { c.add(LevelInfo, msg) }

func (c *Collector) add(level Level, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, Message{Level: level, Text: msg})
}

// Messages returns a copy of everything captured so far.
func (c *Collector) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Reset drops all captured messages.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}
