package transports

import "context"

// Call is one active call leg: an identity usable as a transfer target plus
// the ability to release the underlying transport resource.
type Call interface {
	// Identity returns the transport-level identity of the remote leg
	// (e.g. a call SID), or empty when no leg is active.
	Identity() string
	// Release ends the call at the transport level.
	Release(ctx context.Context) error
}

// TransferGateway requests handoff of an active call to a human endpoint.
type TransferGateway interface {
	Transfer(ctx context.Context, callIdentity, destination string) error
}
