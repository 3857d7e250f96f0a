package providers

import (
	"context"

	"github.com/zatekoja/dentalplan/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.PlanEvent) error

	// Subscribe subscribes to events on a channel until ctx is cancelled
	Subscribe(ctx context.Context, channel string) (<-chan *entities.PlanEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannel constants for different event types
const (
	// EventChannelPlansStaged receives every staged plan
	EventChannelPlansStaged = "plans:staged"

	// EventChannelClinicPlansPrefix is the prefix for clinic-specific plan channels
	EventChannelClinicPlansPrefix = "plans:clinic:"

	// EventChannelClinicConfig receives clinic configuration changes
	EventChannelClinicConfig = "clinics:config"
)

// GetClinicPlansChannel returns the plan channel of a specific clinic
func GetClinicPlansChannel(clinicID string) string {
	return EventChannelClinicPlansPrefix + clinicID
}
