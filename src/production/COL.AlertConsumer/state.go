package consumer

// State of the broker subscription
type State int32

const (
	StateDisconnected State = iota
	StateConnected
	StateChannelOpen
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateChannelOpen:
		return "channel_open"
	case StateSubscribed:
		return "subscribed"
	default:
		return "unknown"
	}
}
