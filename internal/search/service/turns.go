package service

import (
	"sync"

	"github.com/deepsearch-labs/deepquery/internal/search/markdown"
	"github.com/deepsearch-labs/deepquery/internal/search/session"
	"github.com/deepsearch-labs/deepquery/internal/search/types"
)

// TurnStore folds the events of each session's latest turn into a snapshot so
// reconnecting clients and the export endpoint can read session state without
// replaying the stream. Starting a new turn replaces the previous snapshot.
type TurnStore struct {
	mu    sync.RWMutex
	turns map[string]*turnState
}

type turnState struct {
	sess *session.SearchSession
	doc  *markdown.Document
}

// NewTurnStore creates an empty store.
func NewTurnStore() *TurnStore {
	return &TurnStore{turns: make(map[string]*turnState)}
}

// Begin installs a fresh turn for the session.
func (s *TurnStore) Begin(sessionID, turnID, query string) {
	sess := session.NewSession(turnID, query)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[sessionID] = &turnState{
		sess: sess,
		doc:  markdown.Parse(sess.RawAnswerText, sess.Registry),
	}
}

// Apply folds one event into the session's turn. Answer text is reparsed when
// the event changed it or carried a source, so citation targets stay resolved
// as sources arrive and get enriched.
func (s *TurnStore) Apply(sessionID string, ev *types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.turns[sessionID]
	if !ok {
		return
	}
	prev := state.sess
	next := session.Reduce(prev, ev)
	if next.RawAnswerText != prev.RawAnswerText || ev.Type == types.EventSourceFound {
		state.doc = markdown.Parse(next.RawAnswerText, next.Registry)
	}
	state.sess = next
}

// Snapshot returns independent copies of the session's current state.
func (s *TurnStore) Snapshot(sessionID string) (*session.SearchSession, *markdown.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.turns[sessionID]
	if !ok {
		return nil, nil, false
	}
	return state.sess.Clone(), state.doc, true
}
