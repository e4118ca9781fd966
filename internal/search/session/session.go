package session

import (
	"github.com/deepsearch-labs/deepquery/internal/search/types"
)

// Stage is a named phase a turn has entered. Stages accumulate monotonically
// within a turn; they never shrink until a new turn replaces the session.
type Stage string

const (
	StageQueryUnderstanding Stage = "queryUnderstanding"
	StageSearching          Stage = "searching"
	StageReading            Stage = "reading"
	StageWriting            Stage = "writing"
	StageDone               Stage = "done"
	StageErrored            Stage = "errored"
)

// SearchSession is the reconstructed state of one conversational turn. It is
// a value mutated exclusively by Reduce; consumers only ever observe
// snapshots returned from it.
type SearchSession struct {
	TurnID        string
	Checkpoint    string // opaque continuation token from the backend
	Stages        []Stage
	OriginalQuery string
	SubQueries    []string
	Registry      *Registry
	RawAnswerText string // append-only; never rewritten by any event
	Model         string
	ModelName     string // display name
	Advisory      string // non-fatal rag_fallback reason
	Err           string // set when the errored stage is entered

	lastSeq int64 // highest applied content delta sequence number
}

// NewSession creates the session for a freshly submitted query. The turn
// starts in the queryUnderstanding stage; every later stage is added by
// events.
func NewSession(turnID, query string) *SearchSession {
	return &SearchSession{
		TurnID:        turnID,
		Stages:        []Stage{StageQueryUnderstanding},
		OriginalQuery: query,
		Registry:      NewRegistry(),
	}
}

// HasStage reports whether the turn has entered the given stage.
func (s *SearchSession) HasStage(stage Stage) bool {
	for _, st := range s.Stages {
		if st == stage {
			return true
		}
	}
	return false
}

// Terminal reports whether the turn has reached done or errored.
func (s *SearchSession) Terminal() bool {
	return s.HasStage(StageDone) || s.HasStage(StageErrored)
}

// Sources returns the registry contents in ordinal order.
func (s *SearchSession) Sources() []*types.Source {
	return s.Registry.All()
}

// Clone returns an independent deep copy of the session.
func (s *SearchSession) Clone() *SearchSession {
	dup := *s
	dup.Stages = append([]Stage(nil), s.Stages...)
	dup.SubQueries = append([]string(nil), s.SubQueries...)
	dup.Registry = s.Registry.Clone()
	return &dup
}

// addStage appends the stage if not already present; re-adding is a no-op so
// duplicate stage-transition events stay idempotent.
func (s *SearchSession) addStage(stage Stage) {
	if !s.HasStage(stage) {
		s.Stages = append(s.Stages, stage)
	}
}
