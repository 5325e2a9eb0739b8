package wager

import (
	"github.com/wagerx/escrow-engine/internal/model"
)

// EventBridge forwards ledger commit notifications to the WebSocket hub.
// It is registered as the ledger's event sink; only creation and resolution
// are notified, acceptance and cancellation are observable by polling.
type EventBridge struct {
	hub *WSHub
}

func NewEventBridge(hub *WSHub) *EventBridge {
	return &EventBridge{hub: hub}
}

func (b *EventBridge) HandleWagerCreated(ev model.WagerCreated) {
	if b.hub == nil {
		return
	}
	b.hub.Broadcast(WSMessage{
		Type:    "wager_created",
		WagerID: ev.WagerID,
		Creator: ev.Creator,
		Amount:  ev.Amount.String(),
	})
}

func (b *EventBridge) HandleWagerResolved(ev model.WagerResolved) {
	if b.hub == nil {
		return
	}
	b.hub.Broadcast(WSMessage{
		Type:    "wager_resolved",
		WagerID: ev.WagerID,
		Winner:  ev.Winner,
	})
}
