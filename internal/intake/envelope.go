package intake

import (
	"encoding/json"
	"time"
)

const (
	EventTypeOrderPlaced = "order.placed"
	attrEventType        = "event_type"
)

// Envelope is the JSON body published by the ordering flow.
type Envelope struct {
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}
