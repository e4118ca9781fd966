// Package service exposes the answer pipeline over HTTP: the turn event
// stream, session snapshots and HTML export.
package service

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/deepsearch-labs/deepquery/internal/pkg/logger"
	"github.com/deepsearch-labs/deepquery/internal/pkg/response"
	"github.com/deepsearch-labs/deepquery/internal/pkg/sse"
	"github.com/deepsearch-labs/deepquery/internal/search/biz"
	"github.com/deepsearch-labs/deepquery/internal/search/markdown"
	"github.com/deepsearch-labs/deepquery/internal/search/session"
	"github.com/deepsearch-labs/deepquery/internal/search/types"
)

var errClientGone = errors.New("client disconnected")

// SearchService handles HTTP requests for answer turns.
type SearchService struct {
	pipeline *biz.Pipeline
	turns    *TurnStore
	hub      *sse.Hub
	export   goldmark.Markdown
	logger   *logger.Logger
}

// NewSearchService creates the search service.
func NewSearchService(pipeline *biz.Pipeline, hub *sse.Hub, log *logger.Logger) *SearchService {
	if hub == nil {
		hub = sse.NewHub()
	}
	if log == nil {
		log = logger.L()
	}
	return &SearchService{
		pipeline: pipeline,
		turns:    NewTurnStore(),
		hub:      hub,
		export:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
		logger:   log,
	}
}

// RegisterRoutes registers search routes.
func (s *SearchService) RegisterRoutes(r *gin.RouterGroup) {
	search := r.Group("/search")
	{
		search.GET("/stream", s.Stream)
		search.GET("/sessions/:id", s.Snapshot)
		search.GET("/sessions/:id/watch", s.Watch)
		search.GET("/sessions/:id/export", s.Export)
	}
}

// Stream runs one answer turn and streams its events as SSE frames.
func (s *SearchService) Stream(c *gin.Context) {
	query := c.Query("message")
	if query == "" {
		response.BadRequest(c, "message is required")
		return
	}
	sessionID := c.Query("session_id")
	checkpointID := c.Query("checkpoint_id")

	writer, err := sse.NewWriter(c)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	turnID := uuid.New().String()
	turnKey := sessionID
	if turnKey == "" {
		turnKey = turnID
	}
	s.turns.Begin(turnKey, turnID, query)
	if sessionID != "" {
		writer.Mirror(s.hub, "session:"+sessionID)
	}

	emit := func(ev *types.Event) error {
		s.turns.Apply(turnKey, ev)
		if writer.Closed() {
			return errClientGone
		}
		return writer.Send(ev)
	}

	in := &biz.RunInput{SessionID: sessionID, Query: query, CheckpointID: checkpointID}
	if err := s.pipeline.Run(c.Request.Context(), in, emit); err != nil {
		s.logger.Info("turn stream closed early",
			zap.String("session_id", sessionID),
			zap.String("turn_id", turnID),
			zap.Error(err))
	}
}

// Watch attaches a read-only observer to a session. Every frame the primary
// turn stream sends is mirrored to watchers through the hub; a reconnecting
// client fetches the snapshot first and then watches for live frames. The
// connection stays open until the watcher goes away.
func (s *SearchService) Watch(c *gin.Context) {
	sessionID := c.Param("id")
	if _, _, ok := s.turns.Snapshot(sessionID); !ok {
		response.NotFound(c, "session not found")
		return
	}

	writer, err := sse.NewWriter(c)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	// Commit the headers now: the first mirrored frame may be a long time
	// away and the watcher needs to see the stream open.
	c.Writer.Flush()

	client := &sse.Client{
		ID:       uuid.New().String(),
		Channel:  make(chan sse.Event, 64),
		Resource: "session:" + sessionID,
	}
	s.hub.Register(client)
	defer s.hub.Unregister(client)

	for {
		select {
		case ev, ok := <-client.Channel:
			if !ok {
				return
			}
			if err := writer.Forward(ev); err != nil {
				return
			}
		case <-c.Request.Context().Done():
			return
		}
	}
}

// sessionView is the read-only wire shape of a folded turn.
type sessionView struct {
	TurnID        string             `json:"turn_id"`
	Checkpoint    string             `json:"checkpoint,omitempty"`
	Stages        []session.Stage    `json:"stages"`
	OriginalQuery string             `json:"original_query"`
	SubQueries    []string           `json:"sub_queries,omitempty"`
	Sources       []*types.Source    `json:"sources"`
	Answer        string             `json:"answer"`
	Model         string             `json:"model,omitempty"`
	ModelName     string             `json:"model_name,omitempty"`
	Advisory      string             `json:"advisory,omitempty"`
	Error         string             `json:"error,omitempty"`
	Document      *markdown.Document `json:"document"`
}

// Snapshot returns the folded state of the session's latest turn.
func (s *SearchService) Snapshot(c *gin.Context) {
	sess, doc, ok := s.turns.Snapshot(c.Param("id"))
	if !ok {
		response.NotFound(c, "session not found")
		return
	}
	response.Success(c, &sessionView{
		TurnID:        sess.TurnID,
		Checkpoint:    sess.Checkpoint,
		Stages:        sess.Stages,
		OriginalQuery: sess.OriginalQuery,
		SubQueries:    sess.SubQueries,
		Sources:       sess.Sources(),
		Answer:        sess.RawAnswerText,
		Model:         sess.Model,
		ModelName:     sess.ModelName,
		Advisory:      sess.Advisory,
		Error:         sess.Err,
		Document:      doc,
	})
}

// Export renders the session's answer text as standalone HTML.
func (s *SearchService) Export(c *gin.Context) {
	sess, _, ok := s.turns.Snapshot(c.Param("id"))
	if !ok {
		response.NotFound(c, "session not found")
		return
	}

	var buf bytes.Buffer
	if err := s.export.Convert([]byte(sess.RawAnswerText), &buf); err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to render answer")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
