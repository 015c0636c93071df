package pubsub

import (
	"time"

	"github.com/google/uuid"
)

const producer = "fitpulse-chat"

type Meta struct {
	// Trace / request correlation ID
	CorrelationID *string `json:"correlation_id,omitempty"`
	// Unique event ID
	ID string `json:"id"`
	// Emitting service
	Producer *string `json:"producer,omitempty"`
	// Timestamp when the event was emitted
	Time time.Time `json:"time"`
	// Event name and version, e.g. chat.message.offline.v1
	Type string `json:"type"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

func NewEnvelope(eventType string, data any) Envelope {
	p := producer
	return Envelope{
		Meta: Meta{
			ID:       uuid.NewString(),
			Producer: &p,
			Time:     time.Now().UTC(),
			Type:     eventType,
		},
		Data: data,
	}
}
