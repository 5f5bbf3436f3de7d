package pokebattle

import (
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"
)

func newTestNode(t *testing.T, handler Handler) *PeerNode {
	t.Helper()

	node, err := NewPeerNodeWith("127.0.0.1:0", handler, 200*time.Millisecond, 3)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { node.Close() })

	return node
}

func rawConn(t *testing.T) net.PacketConn {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readMsg(t *testing.T, conn net.PacketConn) *Msg {
	t.Helper()

	buf := make([]byte, MaxDatagramSize)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		t.Fatal(err)
	}

	return ParseMsg(buf[:n])
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatal("timed out waiting for ", what)
}

func TestDuplicateAckedButDispatchedOnce(t *testing.T) {
	var dispatched atomic.Int32
	node := newTestNode(t, func(msg *Msg, src net.Addr, n *PeerNode) {
		dispatched.Add(1)
	})

	conn := rawConn(t)
	payload := NewMsg(TypeChatMessage).
		Set("sequence_number", 7).
		Set("sender_name", "test").
		Set("content_type", ChatText).
		Set("message_text", "hi").
		Bytes()

	for i := 0; i < 2; i++ {
		if _, err := conn.WriteTo(payload, node.Addr()); err != nil {
			t.Fatal(err)
		}

		// Every copy is acknowledged, duplicate or not.
		ack := readMsg(t, conn)
		if ack.Type() != TypeAck || ack.Int("ack_number") != 7 {
			t.Fatalf("expected ack for 7, got %v", ack)
		}
	}

	waitFor(t, "dispatch", func() bool { return dispatched.Load() >= 1 })
	time.Sleep(100 * time.Millisecond)

	if n := dispatched.Load(); n != 1 {
		t.Fatalf("dispatched %d times, want 1", n)
	}
}

func TestPeerAddressDiscovery(t *testing.T) {
	node := newTestNode(t, nil)
	conn := rawConn(t)

	// A chat message must not claim the peer slot.
	chat := NewMsg(TypeChatMessage).Set("sequence_number", 1).Bytes()
	if _, err := conn.WriteTo(chat, node.Addr()); err != nil {
		t.Fatal(err)
	}
	readMsg(t, conn) // its ack

	if node.PeerAddr() != nil {
		t.Fatal("peer address set by a non-establishing message")
	}

	hs := NewMsg(TypeHandshakeRequest).Set("sequence_number", 2).Bytes()
	if _, err := conn.WriteTo(hs, node.Addr()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "peer address", func() bool { return node.PeerAddr() != nil })

	if node.PeerAddr().String() != conn.LocalAddr().String() {
		t.Fatalf("tracked %v, want %v", node.PeerAddr(), conn.LocalAddr())
	}
}

func TestAcksAreNotDispatched(t *testing.T) {
	var dispatched atomic.Int32
	node := newTestNode(t, func(msg *Msg, src net.Addr, n *PeerNode) {
		dispatched.Add(1)
	})

	conn := rawConn(t)
	if _, err := conn.WriteTo(Ack(3).Bytes(), node.Addr()); err != nil {
		t.Fatal(err)
	}

	// An inbound ack triggers neither a reply nor a dispatch.
	buf := make([]byte, 64)
	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := conn.ReadFrom(buf); err == nil {
		t.Fatal("ack was answered")
	}

	if dispatched.Load() != 0 {
		t.Fatal("ack reached the application handler")
	}
}

func TestInboundAckClearsPending(t *testing.T) {
	node := newTestNode(t, nil)
	conn := rawConn(t)

	msg := NewMsg(TypeAttackAnnounce).Set("move_name", "tackle")
	if err := node.SendTo(msg, conn.LocalAddr()); err != nil {
		t.Fatal(err)
	}

	if node.Rel().PendingCount() != 1 {
		t.Fatal("send was not tracked")
	}

	readMsg(t, conn) // the attack itself
	if _, err := conn.WriteTo(Ack(msg.Seq()).Bytes(), node.Addr()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "pending table to drain", func() bool {
		return node.Rel().PendingCount() == 0
	})
}

func TestSendWithoutDestination(t *testing.T) {
	node := newTestNode(t, nil)

	if err := node.Send(NewMsg(TypeAttackAnnounce)); !errors.Is(err, ErrNoDestination) {
		t.Fatalf("expected ErrNoDestination, got %v", err)
	}
}

func TestSendAfterShutdown(t *testing.T) {
	node := newTestNode(t, nil)
	node.SetPeerAddr(testAddr)
	node.Close()

	if err := node.Send(NewMsg(TypeAttackAnnounce)); !errors.Is(err, net.ErrClosed) {
		t.Fatalf("expected net.ErrClosed, got %v", err)
	}

	if err := node.Close(); !errors.Is(err, net.ErrClosed) {
		t.Fatalf("second close: expected net.ErrClosed, got %v", err)
	}
}
