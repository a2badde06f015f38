package node

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies a broadcast event's topic for the router's
// subscription table (spec.md §4.8 "Router loop").
type EventKind string

// NetworkFeature is a bitmask of transport features an Endpoint offers
// (spec.md §4.8 "Endpoints").
type NetworkFeature uint8

const (
	FeatureHTTP NetworkFeature = 1 << iota
	FeatureWS
	FeatureTLS
	FeatureTOR
)

// Endpoint is a peer-facing protocol descriptor a module registers with
// RegisterModule so it can be serialised into the node's own peer
// document when gossiped (spec.md §4.8 "Endpoints").
type Endpoint struct {
	API         string
	NodeID      string // optional; empty if this endpoint speaks for the whole node
	Features    NetworkFeature
	APIFeatures uint32
	Addresses   []string
	Port        uint16
	Path        string
}

// Message is the sum type every value sent through the router satisfies
// (spec.md §4.8 "Router loop"). Only this package can construct a
// Message, mirroring the validation package's Outcome marker pattern.
type Message interface {
	isMessage()
}

// RegisterModule announces a module's readiness to the router. ReplyTo
// receives directed Request/Reply traffic and Shutdown notices.
type RegisterModule struct {
	Name      string
	ReplyTo   chan<- Message
	Endpoints []Endpoint
}

func (RegisterModule) isMessage() {}

// Subscribe registers From to receive every Publish of Kind.
type Subscribe struct {
	From chan<- Message
	Kind EventKind
}

func (Subscribe) isMessage() {}

// Publish broadcasts Event to every subscriber of Kind.
type Publish struct {
	Kind  EventKind
	Event any
}

func (Publish) isMessage() {}

// Request asks Target to handle Req; the router copies it to Target's
// inbox and arranges for Reply to be routed back to From's reply
// channel, subject to Deadline (spec.md §5 "Request/Reply carries a
// per-call deadline").
type Request struct {
	From     chan<- Message
	Target   string
	Req      any
	Deadline time.Duration
	replyID  uuid.UUID
}

func (Request) isMessage() {}

// Reply answers a prior Request. Timeout is true if the router
// synthesized this Reply itself because Deadline elapsed before Target
// answered.
type Reply struct {
	Req     any
	Timeout bool
	replyID uuid.UUID
}

func (Reply) isMessage() {}

// Shutdown is broadcast to every registered module on SIGINT or a fatal
// runtime error (spec.md §4.8 "Shutdown").
type Shutdown struct {
	Reason string
}

func (Shutdown) isMessage() {}
