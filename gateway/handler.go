package gateway

// Handler receives session lifecycle callbacks. Callbacks run on the
// receive loop and must not block.
type Handler interface {
	// OnReady is called when the gateway confirms a new or resumed session.
	OnReady(sessionID string, resumed bool)

	// OnDisconnect is called when an attempt ends. The client will
	// automatically reconnect unless it is shutting down.
	OnDisconnect(err error)
}

type nopHandler struct{}

func (nopHandler) OnReady(sessionID string, resumed bool) {}
func (nopHandler) OnDisconnect(err error)                 {}
