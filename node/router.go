package node

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dunitrust/dunitrust/log"
)

// RegistrationWindow is the deadline by which every Required module must
// have sent a RegisterModule message (spec.md §4.8: "Must register with
// the router within 20 seconds or the runtime aborts").
const RegistrationWindow = 20 * time.Second

// ShutdownJoinDeadline bounds how long the router waits for module
// threads to exit after broadcasting Shutdown (spec.md §4.8: "joins each
// thread with a deadline of 5 s; threads still alive are abandoned").
const ShutdownJoinDeadline = 5 * time.Second

type moduleEntry struct {
	inbox     chan<- Message
	endpoints []Endpoint
}

type pendingRequest struct {
	from  chan<- Message
	timer *time.Timer
}

// Router is the single directed/broadcast message switch every module
// thread talks through (spec.md §4.8 "Router loop"). There is exactly
// one Router per running Node.
type Router struct {
	log log.Logger

	inbox chan Message

	mu      sync.Mutex
	modules map[string]moduleEntry
	subs    map[EventKind][]chan<- Message
	pending map[uuid.UUID]pendingRequest
}

// NewRouter builds a Router ready to accept Run.
func NewRouter() *Router {
	return &Router{
		log:     log.New("pkg", "node", "component", "router"),
		inbox:   make(chan Message, 64),
		modules: make(map[string]moduleEntry),
		subs:    make(map[EventKind][]chan<- Message),
		pending: make(map[uuid.UUID]pendingRequest),
	}
}

// Inbox is the channel every module's Start call sends messages on
// (spec.md §4.8: "send_to_router").
func (r *Router) Inbox() chan<- Message { return r.inbox }

// Broadcast enqueues msg on the router's own inbox, same as a module
// would. Used by Node to inject Shutdown.
func (r *Router) Broadcast(msg Message) { r.inbox <- msg }

// Run drains the router's inbox until ctx is cancelled or a Shutdown
// message is processed, whichever comes first.
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-r.inbox:
			if r.dispatch(msg) {
				return
			}
		}
	}
}

// dispatch handles one message and reports whether the router loop
// should stop (true only for Shutdown).
func (r *Router) dispatch(msg Message) (stop bool) {
	switch m := msg.(type) {
	case RegisterModule:
		r.mu.Lock()
		r.modules[m.Name] = moduleEntry{inbox: m.ReplyTo, endpoints: m.Endpoints}
		r.mu.Unlock()
		r.log.Debug("module registered", "name", m.Name, "endpoints", len(m.Endpoints))

	case Subscribe:
		r.mu.Lock()
		r.subs[m.Kind] = append(r.subs[m.Kind], m.From)
		r.mu.Unlock()

	case Publish:
		r.mu.Lock()
		targets := append([]chan<- Message(nil), r.subs[m.Kind]...)
		r.mu.Unlock()
		for _, ch := range targets {
			ch := ch
			go func() { ch <- m }()
		}

	case Request:
		r.mu.Lock()
		target, ok := r.modules[m.Target]
		if !ok {
			r.mu.Unlock()
			go func() { m.From <- Reply{Req: m.Req, Timeout: true} }()
			return false
		}
		id := uuid.New()
		m.replyID = id
		timer := time.AfterFunc(m.Deadline, func() { r.expire(id) })
		r.pending[id] = pendingRequest{from: m.From, timer: timer}
		r.mu.Unlock()
		targetInbox := target.inbox
		go func() { targetInbox <- m }()

	case Reply:
		r.mu.Lock()
		p, ok := r.pending[m.replyID]
		if ok {
			delete(r.pending, m.replyID)
		}
		r.mu.Unlock()
		if ok {
			p.timer.Stop()
			from := p.from
			go func() { from <- m }()
		}

	case Shutdown:
		r.mu.Lock()
		targets := make([]chan<- Message, 0, len(r.modules))
		for _, entry := range r.modules {
			targets = append(targets, entry.inbox)
		}
		r.mu.Unlock()
		for _, ch := range targets {
			ch := ch
			go func() { ch <- m }()
		}
		return true
	}
	return false
}

// expire fires when a Request's deadline elapses before a matching Reply
// arrives; it synthesizes a Timeout reply for the caller (spec.md §5).
func (r *Router) expire(id uuid.UUID) {
	r.mu.Lock()
	p, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	r.mu.Unlock()
	if ok {
		from := p.from
		go func() { from <- Reply{Timeout: true, replyID: id} }()
	}
}

// AwaitRegistration blocks until every name in names has sent a
// RegisterModule, ctx is cancelled, or window elapses, whichever comes
// first. It returns the subset of names still missing.
func (r *Router) AwaitRegistration(ctx context.Context, names []string, window time.Duration) []string {
	const pollInterval = 25 * time.Millisecond

	if missing := r.missing(names); len(missing) == 0 {
		return nil
	}
	deadline := time.Now().Add(window)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return r.missing(names)
		case <-ticker.C:
		}
		if missing := r.missing(names); len(missing) == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return r.missing(names)
		}
	}
}

func (r *Router) missing(names []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range names {
		if _, ok := r.modules[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// Endpoints returns every endpoint registered so far, grouped by owning
// module name, for serialisation into the node's own peer document
// (spec.md §4.8 "Endpoints").
func (r *Router) Endpoints() map[string][]Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]Endpoint, len(r.modules))
	for name, entry := range r.modules {
		if len(entry.endpoints) > 0 {
			out[name] = append([]Endpoint(nil), entry.endpoints...)
		}
	}
	return out
}
