package session

import (
	"github.com/deepsearch-labs/deepquery/internal/search/types"
)

// Reduce applies one event to a session and returns the next session state.
// It is pure with respect to its inputs: the given session is never modified,
// and a structurally valid event never fails. Malformed or unrecognized
// events leave the state untouched; the caller decides whether to log them.
//
// Replaying an identical event sequence against a fresh session yields an
// identical result, which is what makes turns replayable and testable.
func Reduce(s *SearchSession, ev *types.Event) *SearchSession {
	if ev == nil || ev.Validate() != nil {
		return s
	}

	next := s.Clone()

	switch ev.Type {
	case types.EventCheckpoint:
		next.Checkpoint = ev.CheckpointID

	case types.EventSearchStart:
		next.addStage(StageSearching)
		next.OriginalQuery = ev.Query

	case types.EventQueryGenerated:
		next.addStage(StageSearching)
		if ev.QueryType == types.QueryTypeOriginal {
			next.OriginalQuery = ev.Query
		} else {
			next.appendSubQuery(ev.Query)
		}

	case types.EventReadingStart:
		next.addStage(StageReading)

	case types.EventSourceFound:
		next.Registry.Insert(types.NewSource(ev.Source))

	case types.EventModelSelected:
		next.Model = ev.Model
		next.ModelName = ev.DisplayName

	case types.EventRAGFallback:
		next.Advisory = ev.Reason

	case types.EventWritingStart:
		next.addStage(StageWriting)

	case types.EventContent:
		// Numbered deltas must advance the sequence; a replayed or reordered
		// delta is dropped. Unnumbered deltas rely on transport ordering.
		if ev.Seq != 0 {
			if ev.Seq <= next.lastSeq {
				return s
			}
			next.lastSeq = ev.Seq
		}
		next.RawAnswerText += ev.Content

	case types.EventEnd:
		next.addStage(StageDone)

	case types.EventSearchError:
		// Accumulated answer text is kept; partial answers are never
		// discarded on failure.
		next.addStage(StageErrored)
		next.Err = ev.Error
	}

	return next
}

func (s *SearchSession) appendSubQuery(query string) {
	for _, q := range s.SubQueries {
		if q == query {
			return
		}
	}
	s.SubQueries = append(s.SubQueries, query)
}
