package service

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepsearch-labs/deepquery/internal/pkg/sse"
	"github.com/deepsearch-labs/deepquery/internal/search/analyzer"
	"github.com/deepsearch-labs/deepquery/internal/search/biz"
	"github.com/deepsearch-labs/deepquery/internal/search/session"
	"github.com/deepsearch-labs/deepquery/internal/search/types"
	wstypes "github.com/deepsearch-labs/deepquery/internal/websearch/types"
)

type stubQueryAnalyzer struct{}

func (stubQueryAnalyzer) ProcessQuery(context.Context, string, bool, bool) *analyzer.Analysis {
	return &analyzer.Analysis{
		QueryType:         analyzer.TypeFactual,
		SuggestedSearches: []string{"redis overview"},
	}
}

type stubSearcher struct{}

func (stubSearcher) SearchMultiple(context.Context, []string, bool) ([]*wstypes.SearchResult, error) {
	return []*wstypes.SearchResult{
		{Title: "Redis docs", URL: "https://redis.io/docs", Content: "in-memory data store", Score: 0.9},
	}, nil
}

type scriptedGenerator struct {
	tokens []string
}

func (g *scriptedGenerator) Stream(_ context.Context, _ *biz.GenerationRequest, onToken func(string) error) error {
	for _, token := range g.tokens {
		if err := onToken(token); err != nil {
			return err
		}
	}
	return nil
}

func newTestRouter(gen *scriptedGenerator) (*gin.Engine, *SearchService) {
	gin.SetMode(gin.TestMode)
	pipeline := biz.NewPipeline(stubQueryAnalyzer{}, nil, stubSearcher{}, gen, nil, nil, biz.WithoutPacing())
	svc := NewSearchService(pipeline, nil, nil)

	router := gin.New()
	svc.RegisterRoutes(router.Group("/api/v1"))
	return router, svc
}

func decodeFrames(t *testing.T, body string) []*types.Event {
	t.Helper()
	var events []*types.Event
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev types.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, &ev)
	}
	return events
}

func TestStream_EmitsFullTurn(t *testing.T) {
	router, _ := newTestRouter(&scriptedGenerator{tokens: []string{"Redis stores data in memory [1]."}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search/stream?message=what+is+redis%3F&session_id=s1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	events := decodeFrames(t, w.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, types.EventCheckpoint, events[0].Type)
	assert.Equal(t, types.EventEnd, events[len(events)-1].Type)

	var sawSource, sawContent bool
	for _, ev := range events {
		switch ev.Type {
		case types.EventSourceFound:
			sawSource = true
			assert.Equal(t, "https://redis.io/docs", ev.Source.URL)
		case types.EventContent:
			sawContent = true
		}
	}
	assert.True(t, sawSource)
	assert.True(t, sawContent)
}

func TestStream_RequiresMessage(t *testing.T) {
	router, _ := newTestRouter(&scriptedGenerator{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/search/stream", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSnapshot_AfterTurn(t *testing.T) {
	router, svc := newTestRouter(&scriptedGenerator{tokens: []string{"## Summary\n\nRedis is fast [1]."}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search/stream?message=what+is+redis%3F&session_id=s1", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	sess, doc, ok := svc.turns.Snapshot("s1")
	require.True(t, ok)
	assert.True(t, sess.Terminal())
	assert.True(t, sess.HasStage(session.StageDone))
	assert.Equal(t, "## Summary\n\nRedis is fast [1].", sess.RawAnswerText)
	require.NotNil(t, doc)
	assert.NotEmpty(t, doc.Blocks)

	snap := httptest.NewRecorder()
	router.ServeHTTP(snap, httptest.NewRequest(http.MethodGet, "/api/v1/search/sessions/s1", nil))
	require.Equal(t, http.StatusOK, snap.Code)
	assert.Contains(t, snap.Body.String(), `"answer":"## Summary\n\nRedis is fast [1]."`)
	assert.Contains(t, snap.Body.String(), `"original_query":"what is redis?"`)
}

func TestSnapshot_UnknownSession(t *testing.T) {
	router, _ := newTestRouter(&scriptedGenerator{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/search/sessions/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWatch_MirrorsTurnEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gen := &scriptedGenerator{tokens: []string{"Redis stores data in memory [1]."}}
	pipeline := biz.NewPipeline(stubQueryAnalyzer{}, nil, stubSearcher{}, gen, nil, nil, biz.WithoutPacing())
	hub := sse.NewHub()
	svc := NewSearchService(pipeline, hub, nil)

	router := gin.New()
	svc.RegisterRoutes(router.Group("/api/v1"))
	srv := httptest.NewServer(router)
	defer srv.Close()

	// The session exists once its first turn has run.
	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/v1/search/stream?message=what+is+redis%3F&session_id=s1", nil))
	require.Equal(t, http.StatusOK, first.Code)

	watch, err := http.Get(srv.URL + "/api/v1/search/sessions/s1/watch")
	require.NoError(t, err)
	defer watch.Body.Close()
	require.Equal(t, http.StatusOK, watch.StatusCode)
	assert.Contains(t, watch.Header.Get("Content-Type"), "text/event-stream")
	require.Eventually(t, func() bool {
		return hub.Subscribers("session:s1") == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Frames of a second turn on the same session must reach the watcher.
	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/v1/search/stream?message=how+fast+is+it%3F&session_id=s1", nil))
	require.Equal(t, http.StatusOK, second.Code)

	mirrored := make(chan *types.Event, 64)
	go func() {
		scanner := bufio.NewScanner(watch.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev types.Event
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev) == nil {
				mirrored <- &ev
			}
		}
	}()

	var sawContent bool
	var last types.EventType
collect:
	for {
		select {
		case ev := <-mirrored:
			if ev.Type == types.EventContent {
				sawContent = true
			}
			last = ev.Type
			if ev.Type == types.EventEnd {
				break collect
			}
		case <-time.After(2 * time.Second):
			t.Fatal("watcher did not receive mirrored frames")
		}
	}
	assert.True(t, sawContent)
	assert.Equal(t, types.EventEnd, last)
}

func TestWatch_UnknownSession(t *testing.T) {
	router, _ := newTestRouter(&scriptedGenerator{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/search/sessions/missing/watch", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExport_RendersHTML(t *testing.T) {
	router, _ := newTestRouter(&scriptedGenerator{tokens: []string{"## Summary\n\nRedis is **fast**."}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search/stream?message=what+is+redis%3F&session_id=s1", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	export := httptest.NewRecorder()
	router.ServeHTTP(export, httptest.NewRequest(http.MethodGet, "/api/v1/search/sessions/s1/export", nil))
	require.Equal(t, http.StatusOK, export.Code)
	assert.Contains(t, export.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, export.Body.String(), "<h2>Summary</h2>")
	assert.Contains(t, export.Body.String(), "<strong>fast</strong>")
}
