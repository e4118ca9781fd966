package stream

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/deepsearch-labs/deepquery/internal/pkg/logger"
)

// Manager enforces the one-writer-per-session rule: submitting a new query
// first cancels the still-open stream of the previous turn, so two turns can
// never write concurrently.
type Manager struct {
	transport Transport
	log       *logger.Logger
	current   *Consumer
}

// NewManager creates a manager over the given transport.
func NewManager(transport Transport, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.L()
	}
	return &Manager{transport: transport, log: log}
}

// StartTurn cancels any running turn, then opens and consumes the stream for
// the new query in the background. The returned consumer exposes session and
// document snapshots as they evolve.
func (m *Manager) StartTurn(ctx context.Context, endpoint, query string, onUpdate UpdateFunc) *Consumer {
	if m.current != nil {
		m.current.Cancel()
	}

	turnID := uuid.New().String()
	c := NewConsumer(turnID, query, m.transport, m.log, onUpdate)
	m.current = c

	go func() {
		if err := c.Run(ctx, endpoint); err != nil {
			m.log.Warn("turn ended with transport error",
				zap.String("turn_id", turnID),
				zap.Error(err))
		}
	}()

	return c
}

// Current returns the consumer of the most recently started turn, or nil.
func (m *Manager) Current() *Consumer {
	return m.current
}

// Stop cancels the running turn, if any.
func (m *Manager) Stop() {
	if m.current != nil {
		m.current.Cancel()
	}
}
