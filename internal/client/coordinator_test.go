package client

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/AlexisGoodfellow/WinfreyEdit/internal/transport"
	"github.com/AlexisGoodfellow/WinfreyEdit/internal/wire"
)

// fakeServer is a minimal stand-in for internal/server's Coordinator:
// just enough of the subscribe handshake to exercise the client's
// buffering behavior, without pulling in the real server package (which
// would make this an integration test rather than a unit test of the
// client alone).
type fakeServer struct {
	mu      sync.Mutex
	conn    transport.Conn
	subject string
	bcast   string

	// beforeReply is published on the broadcast subject while a subscribe
	// request is being handled, before its reply is returned.
	beforeReply []wire.Operation
}

func newFakeServer(broker *transport.Broker, interactive, broadcast string) *fakeServer {
	s := &fakeServer{conn: broker.NewConn(), subject: interactive, bcast: broadcast}
	s.conn.SubscribeRequest(interactive, s.handle)
	return s
}

func (s *fakeServer) handle(data []byte) []byte {
	op, err := wire.Decode(data)
	if err != nil {
		return []byte(wire.FailureString("Malformed message", err.Error()))
	}
	if op.Name == wire.Subscribe {
		for _, pending := range s.beforeReply {
			s.publish(pending)
		}
		reply := wire.SubscribeReply{
			Status: "subscribed",
			Other: wire.SubscribedOther{
				UUID:    "u1",
				File:    []string{"hello\n"},
				Cursors: map[string]wire.CursorPosition{"u1": {CX: 0, CY: 0}},
			},
		}
		out, _ := json.Marshal(reply)
		return out
	}
	return wire.Null
}

func (s *fakeServer) publish(op wire.Operation) {
	data, _ := wire.EncodeBatch(wire.Batch{op})
	s.conn.Publish(s.bcast, data)
}

func TestSubscribeInstallsSnapshot(t *testing.T) {
	broker := transport.NewBroker()
	srv := newFakeServer(broker, "interactive", "broadcast")
	_ = srv

	coord := New(Config{
		InteractiveSubject:   "interactive",
		BroadcastSubject:     "broadcast",
		PollTimeout:          50 * time.Millisecond,
		ClockRefreshInterval: time.Hour,
	}, broker.NewConn(), nil, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := coord.Subscribe(ctx); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer coord.Unsubscribe()

	if coord.MyID() != "u1" {
		t.Fatalf("MyID() = %q, want u1", coord.MyID())
	}
	if got := coord.Document().Text(); got != "hello\n" {
		t.Fatalf("Document().Text() = %q, want %q", got, "hello\n")
	}
}

func TestBroadcastsBeforeReplyAreBuffered(t *testing.T) {
	broker := transport.NewBroker()
	srv := newFakeServer(broker, "interactive", "broadcast")

	// The fake server publishes a broadcast for a second cursor while it
	// handles the subscribe request: after the client's poll subscription
	// exists but before the subscribe reply arrives. The client must
	// buffer it and still apply it once the snapshot is installed.
	srv.beforeReply = []wire.Operation{{UUID: "u2", Name: wire.CreateCursor, Args: []string{"u2", "0", "0"}}}

	coord := New(Config{
		InteractiveSubject:   "interactive",
		BroadcastSubject:     "broadcast",
		PollTimeout:          20 * time.Millisecond,
		ClockRefreshInterval: time.Hour,
	}, broker.NewConn(), nil, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Give the fake server's subscription and the client's background
	// poll loop a moment to line up before we drive the handshake; the
	// important property under test is that the buffered broadcast
	// survives past the snapshot install, not exact timing.
	time.Sleep(10 * time.Millisecond)

	if err := coord.Subscribe(ctx); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer coord.Unsubscribe()

	deadline := time.After(time.Second)
	for {
		if _, ok := coord.Document().Cursors()["u2"]; ok {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("buffered broadcast for u2 was never applied")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// recordingCallbacks is a minimal document.Callbacks observer used to
// confirm the UI-facing callbacks survive the snapshot install that
// Subscribe performs, rather than being silently dropped.
type recordingCallbacks struct {
	mu      sync.Mutex
	changed []int
}

func (r *recordingCallbacks) AddLine(pos int, text string, cursorCols []int) {}
func (r *recordingCallbacks) ChangeLine(pos int, text string, cursorCols []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, pos)
}
func (r *recordingCallbacks) DeleteLine(pos int) {}

func (r *recordingCallbacks) changeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changed)
}

func TestCallbacksSurviveSnapshotInstall(t *testing.T) {
	broker := transport.NewBroker()
	srv := newFakeServer(broker, "interactive", "broadcast")

	rec := &recordingCallbacks{}
	coord := New(Config{
		InteractiveSubject:   "interactive",
		BroadcastSubject:     "broadcast",
		PollTimeout:          20 * time.Millisecond,
		ClockRefreshInterval: time.Hour,
	}, broker.NewConn(), rec, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := coord.Subscribe(ctx); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer coord.Unsubscribe()

	srv.publish(wire.Operation{UUID: "u1", Name: wire.InsertChar, Args: []string{"u1", "x"}})

	deadline := time.After(time.Second)
	for rec.changeCount() == 0 {
		select {
		case <-deadline:
			t.Fatalf("expected ChangeLine to fire for an edit applied after snapshot install")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	broker := transport.NewBroker()
	newFakeServer(broker, "interactive", "broadcast")

	coord := New(Config{
		InteractiveSubject:   "interactive",
		BroadcastSubject:     "broadcast",
		PollTimeout:          20 * time.Millisecond,
		ClockRefreshInterval: time.Hour,
	}, broker.NewConn(), nil, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := coord.Subscribe(ctx); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := coord.Unsubscribe(); err != nil {
		t.Fatalf("first Unsubscribe: %v", err)
	}
	if err := coord.Unsubscribe(); err != nil {
		t.Fatalf("second Unsubscribe should be a no-op, got: %v", err)
	}
}
