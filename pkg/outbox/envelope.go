package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/foodbowl/foodbowl-backend/pkg/enums"
)

// SchemaVersion is bumped when Envelope changes shape. Consumers switch on it.
const SchemaVersion = 1

// ActorRef identifies who caused the event.
type ActorRef struct {
	UserID uuid.UUID      `json:"userId"`
	Role   enums.UserRole `json:"role"`
}

func Actor(userID uuid.UUID, role enums.UserRole) *ActorRef {
	return &ActorRef{UserID: userID, Role: role}
}

// Envelope is the JSON stored in outbox_events.payload and published verbatim.
// It repeats the routing columns so a consumer never needs message attributes.
type Envelope struct {
	SchemaVersion int                       `json:"schemaVersion"`
	EventID       uuid.UUID                 `json:"eventId"`
	EventType     enums.OutboxEventType     `json:"eventType"`
	AggregateType enums.OutboxAggregateType `json:"aggregateType"`
	AggregateID   uuid.UUID                 `json:"aggregateId"`
	OccurredAt    time.Time                 `json:"occurredAt"`
	Actor         *ActorRef                 `json:"actor,omitempty"`
	Data          json.RawMessage           `json:"data"`
}
