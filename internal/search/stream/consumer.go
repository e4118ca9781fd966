package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/deepsearch-labs/deepquery/internal/pkg/logger"
	"github.com/deepsearch-labs/deepquery/internal/search/markdown"
	"github.com/deepsearch-labs/deepquery/internal/search/session"
	"github.com/deepsearch-labs/deepquery/internal/search/types"
)

// ConnectivityError is the user-facing message attached to a turn whose
// stream failed before a terminal event.
const ConnectivityError = "connection to the search service was lost"

// UpdateFunc observes a new session snapshot and, when the answer text grew,
// the freshly parsed document. Snapshots are immutable; the rendering layer
// must never mutate them.
type UpdateFunc func(s *session.SearchSession, doc *markdown.Document)

// Consumer folds one turn's event stream into a session. It is the single
// writer for its session: events are applied one at a time, re-parsing the
// answer whenever the raw text changes. A cancelled consumer discards every
// later event, even ones the transport delivers late.
type Consumer struct {
	mu       sync.Mutex
	sess     *session.SearchSession
	doc      *markdown.Document
	onUpdate UpdateFunc

	transport Transport
	log       *logger.Logger

	cancelled atomic.Bool
	cancel    context.CancelFunc
}

// NewConsumer creates the consumer and the fresh session for a turn.
func NewConsumer(turnID, query string, transport Transport, log *logger.Logger, onUpdate UpdateFunc) *Consumer {
	if log == nil {
		log = logger.L()
	}
	return &Consumer{
		sess:      session.NewSession(turnID, query),
		doc:       &markdown.Document{},
		onUpdate:  onUpdate,
		transport: transport,
		log:       log.With(zap.String("turn_id", turnID)),
	}
}

// Run opens the stream and consumes it to completion. A transport failure
// before a terminal event moves the session to the errored stage with a
// connectivity message; answer text accumulated so far is preserved either
// way. Run returns once the stream is exhausted, fails, or is cancelled.
func (c *Consumer) Run(ctx context.Context, endpoint string) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	st, err := c.transport.Open(ctx, endpoint)
	if err != nil {
		c.log.Error("failed to open turn stream", zap.Error(err))
		c.markConnectivityFailure()
		return err
	}
	defer st.Close()

	for {
		data, err := st.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if !c.Session().Terminal() && !c.cancelled.Load() {
					c.markConnectivityFailure()
				}
				return nil
			}
			if c.cancelled.Load() {
				return nil
			}
			c.log.Warn("turn stream failed", zap.Error(err))
			c.markConnectivityFailure()
			return err
		}

		if c.cancelled.Load() {
			continue // drained and dropped
		}
		c.apply(data)
	}
}

// Cancel stops the turn. Safe to call more than once; events arriving after
// cancellation are discarded unconditionally.
func (c *Consumer) Cancel() {
	c.cancelled.Store(true)
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Session returns the current immutable session snapshot.
func (c *Consumer) Session() *session.SearchSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// Document returns the most recent parse of the answer text.
func (c *Consumer) Document() *markdown.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc
}

// apply decodes and reduces one raw message. Malformed payloads are dropped
// with a diagnostic; the session is never failed by a single bad event.
func (c *Consumer) apply(data []byte) {
	ev, err := types.DecodeEvent(data)
	if err != nil {
		c.log.Warn("dropping malformed event",
			zap.Error(err),
			zap.ByteString("payload", data))
		return
	}

	c.mu.Lock()
	prevText := c.sess.RawAnswerText
	c.sess = session.Reduce(c.sess, ev)
	// Any source event can change citation targets, including a duplicate
	// that only enriches an existing entry, so it forces a re-parse just
	// like text growth does.
	if c.sess.RawAnswerText != prevText || ev.Type == types.EventSourceFound {
		c.doc = markdown.Parse(c.sess.RawAnswerText, c.sess.Registry)
	}
	sess, doc := c.sess, c.doc
	c.mu.Unlock()

	if c.onUpdate != nil {
		c.onUpdate(sess, doc)
	}
}

// markConnectivityFailure routes the failure through the reducer so the
// errored transition stays in one place.
func (c *Consumer) markConnectivityFailure() {
	c.mu.Lock()
	c.sess = session.Reduce(c.sess, &types.Event{
		Type:  types.EventSearchError,
		Error: ConnectivityError,
	})
	sess, doc := c.sess, c.doc
	c.mu.Unlock()

	if c.onUpdate != nil {
		c.onUpdate(sess, doc)
	}
}
