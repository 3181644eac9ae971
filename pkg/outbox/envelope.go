package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
)

// CurrentEnvelopeVersion is written on every new event. Consumers reject
// envelopes newer than the version they understand.
const CurrentEnvelopeVersion = 1

// ActorRef identifies who caused the event. Events raised by the system
// itself, such as payment-timeout cancellations, carry no actor.
type ActorRef struct {
	UserID   uuid.UUID  `json:"userId"`
	TenantID *uuid.UUID `json:"tenantId,omitempty"`
	Role     string     `json:"role,omitempty"`
}

// NewActor builds an ActorRef, or nil when no user is known.
func NewActor(userID, tenantID uuid.UUID, role enums.ActorRole) *ActorRef {
	if userID == uuid.Nil {
		return nil
	}
	ref := &ActorRef{UserID: userID, Role: role.String()}
	if tenantID != uuid.Nil {
		tenant := tenantID
		ref.TenantID = &tenant
	}
	return ref
}

// PayloadEnvelope is the JSON document stored in outbox_events.payload_json
// and published as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses and checks a stored envelope.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return envelope, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Version <= 0 || envelope.Version > CurrentEnvelopeVersion {
		return envelope, fmt.Errorf("unsupported envelope version %d", envelope.Version)
	}
	if _, err := uuid.Parse(envelope.EventID); err != nil {
		return envelope, fmt.Errorf("envelope event id: %w", err)
	}
	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return envelope, errors.New("envelope data missing")
	}
	return envelope, nil
}
