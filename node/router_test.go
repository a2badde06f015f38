package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwaitRegistrationSucceeds(t *testing.T) {
	r := NewRouter()
	go r.Run(context.Background())

	inbox := make(chan Message, 1)
	r.Broadcast(RegisterModule{Name: "bouncer", ReplyTo: inbox})

	missing := r.AwaitRegistration(context.Background(), []string{"bouncer"}, 500*time.Millisecond)
	assert.Empty(t, missing)
}

func TestAwaitRegistrationTimesOut(t *testing.T) {
	r := NewRouter()
	go r.Run(context.Background())

	missing := r.AwaitRegistration(context.Background(), []string{"ghost"}, 100*time.Millisecond)
	assert.Equal(t, []string{"ghost"}, missing)
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	r := NewRouter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	sub := make(chan Message, 1)
	r.Broadcast(Subscribe{From: sub, Kind: "block"})
	time.Sleep(10 * time.Millisecond) // let the subscribe land before publishing

	r.Broadcast(Publish{Kind: "block", Event: 42})

	select {
	case msg := <-sub:
		pub, ok := msg.(Publish)
		require.True(t, ok)
		assert.Equal(t, 42, pub.Event)
	case <-time.After(time.Second):
		t.Fatal("subscriber never received publish")
	}
}

func TestRequestReplyRoundTrip(t *testing.T) {
	r := NewRouter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	target := make(chan Message, 1)
	r.Broadcast(RegisterModule{Name: "echo", ReplyTo: target})

	caller := make(chan Message, 1)
	r.Broadcast(Request{From: caller, Target: "echo", Req: "ping", Deadline: time.Second})

	var req Request
	select {
	case msg := <-target:
		var ok bool
		req, ok = msg.(Request)
		require.True(t, ok)
		assert.Equal(t, "ping", req.Req)
	case <-time.After(time.Second):
		t.Fatal("target never received request")
	}

	r.Broadcast(Reply{Req: "pong", replyID: req.replyID})

	select {
	case msg := <-caller:
		reply, ok := msg.(Reply)
		require.True(t, ok)
		assert.Equal(t, "pong", reply.Req)
		assert.False(t, reply.Timeout)
	case <-time.After(time.Second):
		t.Fatal("caller never received reply")
	}
}

func TestRequestTimesOutWhenTargetSilent(t *testing.T) {
	r := NewRouter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	target := make(chan Message, 1)
	r.Broadcast(RegisterModule{Name: "slow", ReplyTo: target})

	caller := make(chan Message, 1)
	r.Broadcast(Request{From: caller, Target: "slow", Req: "ping", Deadline: 20 * time.Millisecond})

	select {
	case msg := <-caller:
		reply, ok := msg.(Reply)
		require.True(t, ok)
		assert.True(t, reply.Timeout)
	case <-time.After(time.Second):
		t.Fatal("caller never received timeout reply")
	}
}

func TestRequestToUnknownTargetRepliesImmediately(t *testing.T) {
	r := NewRouter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	caller := make(chan Message, 1)
	r.Broadcast(Request{From: caller, Target: "nobody", Req: "ping", Deadline: time.Second})

	select {
	case msg := <-caller:
		reply, ok := msg.(Reply)
		require.True(t, ok)
		assert.True(t, reply.Timeout)
	case <-time.After(time.Second):
		t.Fatal("caller never received reply for unknown target")
	}
}

func TestShutdownBroadcastsToEveryModule(t *testing.T) {
	r := NewRouter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { r.Run(ctx); close(done) }()

	a := make(chan Message, 1)
	b := make(chan Message, 1)
	r.Broadcast(RegisterModule{Name: "a", ReplyTo: a})
	r.Broadcast(RegisterModule{Name: "b", ReplyTo: b})
	time.Sleep(10 * time.Millisecond)

	r.Broadcast(Shutdown{Reason: "test"})

	for _, ch := range []chan Message{a, b} {
		select {
		case msg := <-ch:
			_, ok := msg.(Shutdown)
			assert.True(t, ok)
		case <-time.After(time.Second):
			t.Fatal("module never received shutdown")
		}
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("router never stopped after shutdown")
	}
}
