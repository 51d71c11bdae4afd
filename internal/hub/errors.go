package hub

import "errors"

// ErrUnauthenticated marks an event that arrived before the connection
// completed its auth handshake. The event is rejected before any state
// mutation.
var ErrUnauthenticated = errors.New("connection not authenticated")
