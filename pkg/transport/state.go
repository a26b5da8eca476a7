package transport

// State is the lifecycle phase of a managed client connection.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateReconnecting State = "RECONNECTING"
)

func (s State) String() string {
	return string(s)
}
