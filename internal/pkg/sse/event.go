package sse

import "encoding/json"

// Event is one server-sent message. Payload is marshaled as the data line;
// turn streams put the discriminated event union here so the tag travels
// inside the JSON body, matching the client event contract.
type Event struct {
	Payload interface{}
}

// Format renders the event as an SSE frame.
func (e Event) Format() string {
	data, _ := json.Marshal(e.Payload)
	return "data: " + string(data) + "\n\n"
}

// Client is one subscriber connection managed by a Hub.
type Client struct {
	ID       string
	Channel  chan Event
	Resource string // subscribed resource id, e.g. "session:xxx"
}
