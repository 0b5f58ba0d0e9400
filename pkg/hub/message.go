// Package hub fans status updates out to websocket subscribers using a
// channel-based broadcast loop.
package hub

import jsoniter "github.com/json-iterator/go"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EventStatus carries a full status snapshot.
const EventStatus = "status"

// Envelope is the JSON frame sent to clients.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Encode marshals an event into a frame.
func Encode(eventType string, data any) ([]byte, error) {
	return json.Marshal(Envelope{Type: eventType, Data: data})
}
