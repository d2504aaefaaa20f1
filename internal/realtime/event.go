package realtime

// Event types carried on the change channel.
const (
	EventCreated = "created"
	EventUpdated = "updated"
)

// ChangeEvent is the wire form of an alert change notification. It carries
// only the row id; subscribers re-read the row so late or duplicated
// deliveries converge on current state.
type ChangeEvent struct {
	Type    string `json:"type"`
	AlertID string `json:"alert_id"`
}
