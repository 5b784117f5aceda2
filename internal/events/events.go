package events

// Event types
const (
	EventWalletStateChanged = "wallet_state_changed"
	EventNetworkChanged     = "network_changed"
	EventPurchaseConfirmed  = "purchase_confirmed"
	EventPurchaseFailed     = "purchase_failed"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(event Event)
}

// Subscriber delivers events to a handler until the returned unsubscribe
// function is called. Unsubscribe is idempotent.
type Subscriber interface {
	Subscribe(handler func(Event)) (unsubscribe func())
}
