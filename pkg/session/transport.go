package session

import "context"

// Message is one inbound frame delivered to a subscription.
type Message struct {
	Destination  string
	Subscription string
	ContentType  string
	Header       map[string]string
	Body         []byte
}

// DialOptions carries what a transport needs to authenticate the
// connection.
type DialOptions struct {
	Token    string
	Identity string
}

// Transport opens realtime connections. Each Dial yields an independent
// connection; the ConnectionManager owns reconnection.
type Transport interface {
	Dial(ctx context.Context, opts DialOptions) (Conn, error)
}

// Conn is one live publish/subscribe connection. Handlers for one
// subscription run sequentially on a goroutine owned by the connection.
type Conn interface {
	Subscribe(destination string, handler func(Message)) (Unsubscriber, error)
	Send(destination string, body []byte, headers map[string]string) error

	// Done is closed when the connection is gone for any reason.
	Done() <-chan struct{}
	// Err reports why Done was closed. nil after a local Close.
	Err() error
	Close() error
}

type Unsubscriber interface {
	Unsubscribe() error
}
