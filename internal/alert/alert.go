// Package alert delivers notifications and listens for operator commands.
package alert

import (
	"context"
	"sync"
	"time"

	"github.com/alitto/pond"

	"github.com/danya2271/LocalLLMTradingBot/internal/core"
)

type Level string

const (
	Info     Level = "INFO"
	Warning  Level = "WARNING"
	Error    Level = "ERROR"
	Critical Level = "CRITICAL"
)

type Payload struct {
	Level     Level
	Title     string
	Message   string
	Timestamp time.Time
	Fields    map[string]string
}

// Channel is a notification sink
type Channel interface {
	Send(ctx context.Context, alert Payload) error
	Name() string
}

// Manager fans alerts out to every registered channel. Delivery runs on a
// worker pool so the trading path never blocks on a slow sink.
type Manager struct {
	channels []Channel
	pool     *pond.WorkerPool
	logger   core.ILogger
	mu       sync.RWMutex
}

func NewManager(logger core.ILogger) *Manager {
	mlog := logger.WithField("component", "alert_manager")
	pool := pond.New(4, 64,
		pond.MinWorkers(1),
		pond.IdleTimeout(60*time.Second),
		pond.PanicHandler(func(p interface{}) {
			mlog.Error("Alert delivery panic recovered", "panic", p)
		}),
	)
	return &Manager{
		channels: make([]Channel, 0),
		pool:     pool,
		logger:   mlog,
	}
}

func (m *Manager) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
	m.logger.Info("Added alert channel", "name", ch.Name())
}

// Alert queues delivery to all channels and returns immediately
func (m *Manager) Alert(ctx context.Context, title, message string, level Level, fields map[string]string) {
	payload := Payload{
		Level:     level,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
		Fields:    fields,
	}

	m.mu.RLock()
	channels := make([]Channel, len(m.channels))
	copy(channels, m.channels)
	m.mu.RUnlock()

	for _, ch := range channels {
		ch := ch
		m.pool.Submit(func() {
			timeoutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := ch.Send(timeoutCtx, payload); err != nil {
				m.logger.Error("Failed to send alert", "channel", ch.Name(), "error", err)
			}
		})
	}
}

// Stop drains queued deliveries
func (m *Manager) Stop() {
	m.pool.StopAndWait()
}
