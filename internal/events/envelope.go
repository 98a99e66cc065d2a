package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidEnvelope = errors.New("invalid event envelope")

// Envelope wraps every order event. Sequence counts the events of one order,
// starting at 1, and PartitionKey is the order id.
type Envelope[T any] struct {
	EventName     string    `json:"eventName"`
	EventVersion  int       `json:"eventVersion"`
	EventID       string    `json:"eventId"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Producer      string    `json:"producer"`
	PartitionKey  string    `json:"partitionKey"`
	Sequence      *int64    `json:"sequence,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
	Schema        string    `json:"schema"`
	Payload       T         `json:"payload"`
}

func (e Envelope[T]) Validate(name string, version int) error {
	switch {
	case e.EventName != name:
		return fmt.Errorf("%w: eventName %q, want %q", ErrInvalidEnvelope, e.EventName, name)
	case e.EventVersion != version:
		return fmt.Errorf("%w: eventVersion %d, want %d", ErrInvalidEnvelope, e.EventVersion, version)
	case e.EventID == "":
		return fmt.Errorf("%w: missing eventId", ErrInvalidEnvelope)
	case e.PartitionKey == "":
		return fmt.Errorf("%w: missing partitionKey", ErrInvalidEnvelope)
	case e.Sequence == nil || *e.Sequence < 1:
		return fmt.Errorf("%w: missing sequence", ErrInvalidEnvelope)
	}
	return nil
}

// Decode unmarshals a message body and checks it carries the named event.
func Decode[T any](body []byte, name string, version int) (Envelope[T], error) {
	var env Envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return env, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	return env, env.Validate(name, version)
}
