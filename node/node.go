// Package node implements the modular runtime and router (spec.md §4.8):
// one router thread plus one thread per registered Module, communicating
// exclusively through typed Messages.
package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dunitrust/dunitrust/accounts/keystore"
	"github.com/dunitrust/dunitrust/log"
)

// Process exit codes (spec.md §7 "Process exit codes").
const (
	ExitOK                  = 0
	ExitInvariant           = 1
	ExitRegistrationTimeout = 2
	ExitIOFatal             = 3
)

type registeredModule struct {
	module Module
	conf   any
}

// Node owns the Router and the full set of Modules for one running
// process (spec.md §4.8 "Model: one process, N+1 threads").
type Node struct {
	log    log.Logger
	meta   Meta
	keys   *keystore.Keypairs
	router *Router

	mu      sync.Mutex
	modules []registeredModule
}

// New builds a Node ready to have modules registered onto it via
// Register. meta and keys are shared by value/pointer with every module
// and never mutated afterward (spec.md §5).
func New(meta Meta, keys *keystore.Keypairs) *Node {
	return &Node{
		log:    log.New("pkg", "node"),
		meta:   meta,
		keys:   keys,
		router: NewRouter(),
	}
}

// Register adds m to the set started by Run, with its module-specific
// configuration conf. Must be called before Run.
func (n *Node) Register(m Module, conf any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.modules = append(n.modules, registeredModule{module: m, conf: conf})
}

// Router exposes the underlying Router, mainly so a caller can serialise
// Router.Endpoints() into the node's own peer document.
func (n *Node) Router() *Router { return n.router }

// Run starts every registered module on its own goroutine, waits for
// Required modules to register within RegistrationWindow, then blocks
// until ctx is cancelled (normal shutdown, e.g. SIGINT) or a module
// reports a fatal Start error. It always broadcasts Shutdown and joins
// every module thread (bounded by ShutdownJoinDeadline) before
// returning. The first return value is the process exit code to use.
func (n *Node) Run(ctx context.Context) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n.mu.Lock()
	modules := append([]registeredModule(nil), n.modules...)
	n.mu.Unlock()

	var wg sync.WaitGroup
	errCh := make(chan error, len(modules))
	for _, rm := range modules {
		rm := rm
		wg.Add(1)
		go func() {
			defer wg.Done()
			keys := fromKeypairs(n.keys, rm.module.RequiredKeys())
			if err := rm.module.Start(ctx, n.meta, keys, rm.conf, n.router.Inbox()); err != nil {
				errCh <- &StartError{Module: rm.module.Name(), Err: err}
			}
		}()
	}

	routerDone := make(chan struct{})
	go func() {
		n.router.Run(ctx)
		close(routerDone)
	}()

	var required []string
	for _, rm := range modules {
		if rm.module.Priority() == Required {
			required = append(required, rm.module.Name())
		}
	}

	// A module's Start can fail before it ever registers, so errCh is
	// watched during the registration window as well.
	regCtx, stopReg := context.WithCancel(ctx)
	regDone := make(chan []string, 1)
	go func() { regDone <- n.router.AwaitRegistration(regCtx, required, RegistrationWindow) }()
	var missing []string
	select {
	case missing = <-regDone:
	case err := <-errCh:
		stopReg()
		<-regDone
		errCh <- err // handled by the select below
	}
	stopReg()

	if len(missing) > 0 {
		n.log.Error("module registration window elapsed", "missing", missing)
		cancel()
		n.shutdown(&wg, routerDone, fmt.Sprintf("registration timeout: %v", missing))
		return ExitRegistrationTimeout, fmt.Errorf("node: modules did not register within %s: %v", RegistrationWindow, missing)
	}

	select {
	case <-ctx.Done():
		n.shutdown(&wg, routerDone, "context cancelled")
		return ExitOK, nil
	case err := <-errCh:
		n.log.Error("module start failed", "err", err)
		cancel()
		n.shutdown(&wg, routerDone, err.Error())
		return ExitInvariant, err
	}
}

// shutdown broadcasts Shutdown and waits for every module thread (and
// the router) to exit, abandoning any still running past
// ShutdownJoinDeadline (spec.md §4.8 "Shutdown").
func (n *Node) shutdown(wg *sync.WaitGroup, routerDone <-chan struct{}, reason string) {
	n.router.Broadcast(Shutdown{Reason: reason})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		<-routerDone
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(ShutdownJoinDeadline):
		n.log.Warn("shutdown join deadline elapsed; abandoning remaining threads", "deadline", ShutdownJoinDeadline)
	}
}
