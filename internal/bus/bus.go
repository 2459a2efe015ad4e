// Package bus carries batch lifecycle events between the API, the
// async worker, and downstream alert consumers.
package bus

import (
	"fmt"

	"github.com/opensource-telco/shrike/internal/domain"
)

// New creates an event bus from configuration: in-process channels for
// the Community tier, NATS for Pro. Both carry the same Message
// envelope on the shrike.* topics.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
