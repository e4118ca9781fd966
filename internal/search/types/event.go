package types

import (
	"encoding/json"
	"fmt"
)

// EventType identifies the kind of pipeline event carried on a turn stream
type EventType string

const (
	EventCheckpoint     EventType = "checkpoint"
	EventSearchStart    EventType = "search_start"
	EventQueryGenerated EventType = "query_generated"
	EventReadingStart   EventType = "reading_start"
	EventSourceFound    EventType = "source_found"
	EventModelSelected  EventType = "model_selected"
	EventRAGFallback    EventType = "rag_fallback"
	EventWritingStart   EventType = "writing_start"
	EventContent        EventType = "content"
	EventEnd            EventType = "end"
	EventSearchError    EventType = "search_error"
)

// QueryType values for query_generated events
const (
	QueryTypeOriginal = "original"
	QueryTypeSubQuery = "sub_query"
)

// Event is the discriminated union delivered over a turn stream. Type is the
// mandatory tag; the remaining fields are payload and only the subset required
// by the tag is meaningful. Events are inputs to the reducer and never mutated.
type Event struct {
	Type EventType `json:"type"`

	// checkpoint
	CheckpointID string `json:"checkpoint_id,omitempty"`

	// search_start, query_generated
	Query     string `json:"query,omitempty"`
	QueryType string `json:"query_type,omitempty"`

	// source_found
	Source *SourcePayload `json:"source,omitempty"`

	// model_selected
	Model       string `json:"model,omitempty"`
	DisplayName string `json:"display_name,omitempty"`

	// rag_fallback
	Reason string `json:"reason,omitempty"`

	// content. Seq is an optional per-turn sequence number; the reducer drops
	// a numbered delta that does not advance past the last applied one.
	Content string `json:"content,omitempty"`
	Seq     int64  `json:"seq,omitempty"`

	// search_error
	Error string `json:"error,omitempty"`
}

// MalformedEventError reports an event that failed structural validation.
// Malformed events are dropped at the ingestion boundary; they never fail a
// session.
type MalformedEventError struct {
	Type   EventType
	Reason string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed event %q: %s", e.Type, e.Reason)
}

// DecodeEvent deserializes and validates a raw stream message.
func DecodeEvent(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, &MalformedEventError{Reason: err.Error()}
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Validate checks that the payload carries the fields its tag requires.
func (e *Event) Validate() error {
	switch e.Type {
	case EventCheckpoint:
		if e.CheckpointID == "" {
			return &MalformedEventError{Type: e.Type, Reason: "missing checkpoint_id"}
		}
	case EventSearchStart:
		if e.Query == "" {
			return &MalformedEventError{Type: e.Type, Reason: "missing query"}
		}
	case EventQueryGenerated:
		if e.Query == "" {
			return &MalformedEventError{Type: e.Type, Reason: "missing query"}
		}
		if e.QueryType != QueryTypeOriginal && e.QueryType != QueryTypeSubQuery {
			return &MalformedEventError{Type: e.Type, Reason: "invalid query_type"}
		}
	case EventSourceFound:
		if e.Source == nil {
			return &MalformedEventError{Type: e.Type, Reason: "missing source"}
		}
		if e.Source.URL == "" && e.Source.Filename == "" {
			return &MalformedEventError{Type: e.Type, Reason: "source has neither url nor filename"}
		}
	case EventModelSelected:
		if e.Model == "" {
			return &MalformedEventError{Type: e.Type, Reason: "missing model"}
		}
	case EventRAGFallback:
		if e.Reason == "" {
			return &MalformedEventError{Type: e.Type, Reason: "missing reason"}
		}
	case EventContent:
		if e.Content == "" {
			return &MalformedEventError{Type: e.Type, Reason: "missing content"}
		}
	case EventSearchError:
		if e.Error == "" {
			return &MalformedEventError{Type: e.Type, Reason: "missing error"}
		}
	case EventReadingStart, EventWritingStart, EventEnd:
		// no payload
	default:
		return &MalformedEventError{Type: e.Type, Reason: "unknown event type"}
	}
	return nil
}
