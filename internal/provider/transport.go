package provider

import "context"

// Endpoint tells a transport where a provider feed lives and which topics
// the subscription covers. Kafka transports ignore URL, their broker list
// is fixed at client creation.
type Endpoint struct {
	URL    string
	Topics []string
}

// Stream is one live connection to a provider feed.
//
// Read blocks until a frame arrives, the stream dies, or ctx is done. A
// reader blocked on a quiet feed is unblocked by Close.
type Stream interface {
	Read(ctx context.Context) ([]byte, error)
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// Transport dials provider feeds.
type Transport interface {
	Dial(ctx context.Context, endpoint Endpoint) (Stream, error)
}
