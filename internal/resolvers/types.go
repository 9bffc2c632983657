// Package resolvers defines the contract the DNS transports (internal/server)
// use to reach the query resolver (internal/resolver) without depending on
// its concrete type.
package resolvers

import (
	"context"

	"github.com/kaidyth/lexa/internal/dns"
)

// Result holds the outcome of a DNS resolution.
type Result struct {
	ResponseBytes []byte // Wire-format DNS response
	Source        string // Where the answer came from (e.g., "resolver", "empty", "servfail")
}

// Resolver is the interface the DNS transports depend on to turn a parsed
// request into a response. internal/resolver.Lexa is the only
// implementation.
type Resolver interface {
	// Resolve processes a DNS query and returns a response.
	// The context can be used for cancellation and timeouts.
	Resolve(ctx context.Context, req dns.Packet, reqBytes []byte) (Result, error)

	// Close releases any resources held by the resolver (e.g., connection pools).
	Close() error
}
