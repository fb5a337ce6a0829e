package stream

import "time"

// KindAudio is the event kind for captured audio segments.
const KindAudio = "audio"

// Event is a delivered data record: one encoded segment plus metadata.
// Events are constructed fresh per dispatch and never persisted; the data
// source retains only the most recent one.
type Event struct {
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	Format    string    `json:"format"`
	Payload   []byte    `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// EventInfo is the payload-free view of an event used by the status API.
type EventInfo struct {
	Kind         string    `json:"kind"`
	Name         string    `json:"name"`
	Format       string    `json:"format"`
	PayloadBytes int       `json:"payload_bytes"`
	Timestamp    time.Time `json:"timestamp"`
}

// Info returns the payload-free view of the event.
func (e Event) Info() EventInfo {
	return EventInfo{
		Kind:         e.Kind,
		Name:         e.Name,
		Format:       e.Format,
		PayloadBytes: len(e.Payload),
		Timestamp:    e.Timestamp,
	}
}
