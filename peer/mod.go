// Package peer declares the external surface of a Kademlia node: the
// lifecycle (Service) and the three operations the lookup engine drives
// (KademliaDHT). Adapted from the teacher's peer package — everything
// about gossip broadcast, naming consensus, page rank, and search that the
// teacher's full peer.Peer interface carried is dropped; see DESIGN.md.
package peer

import (
	"time"

	"go.dedis.ch/kademlia/registry"
	"go.dedis.ch/kademlia/transport"
)

// Service is the node lifecycle, matching the teacher's peer.Service.
type Service interface {
	Start() error
	Stop() error
}

// Peer is a running Kademlia node.
type Peer interface {
	Service
	KademliaDHT
}

// Configuration bundles everything NewPeer needs to wire a node, following
// the shape of the teacher's peer.Configuration (its conf.Socket,
// conf.MessageRegistry, conf.AckTimeout fields survive; gossip/paxos/search
// fields do not).
type Configuration struct {
	Socket          transport.Socket
	MessageRegistry registry.Registry

	// AckTimeout is the reply inbox's fixed per-query deadline, spec.md §5:
	// "A fixed per-query wall-clock deadline is enforced by the reply
	// inbox, not the engine."
	AckTimeout time.Duration

	// StorageQuota bounds how many distinct keys the local value store
	// (peer/impl/store.go) will accept via STORE before it starts refusing
	// new keys; 0 means unbounded. Persistence of values across restarts is
	// out of scope (spec.md's Non-goals), but an in-memory bound on how much
	// of the DHT a single node will shoulder is not.
	StorageQuota int
}

// Option configures a Configuration, matching the functional-option style
// the teacher's test harness builds z.NewTestNode calls with
// (z.WithAckTimeout, z.WithAntiEntropy, …).
type Option func(*Configuration)

// NewConfiguration applies opts over a Configuration with spec-mandated
// defaults.
func NewConfiguration(socket transport.Socket, reg registry.Registry, opts ...Option) Configuration {
	conf := Configuration{
		Socket:          socket,
		MessageRegistry: reg,
		AckTimeout:      time.Second,
	}
	for _, opt := range opts {
		opt(&conf)
	}
	return conf
}

// WithAckTimeout overrides the reply inbox's per-query deadline.
func WithAckTimeout(d time.Duration) Option {
	return func(c *Configuration) {
		c.AckTimeout = d
	}
}

// WithStorageQuota overrides the local value store's key-count bound.
func WithStorageQuota(n int) Option {
	return func(c *Configuration) {
		c.StorageQuota = n
	}
}
