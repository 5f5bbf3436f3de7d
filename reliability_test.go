package pokebattle

import (
	"net"
	"sync"
	"testing"
	"time"
)

// recordConn is a PacketConn that records every WriteTo and
// never delivers anything
type recordConn struct {
	mu     sync.Mutex
	writes [][]byte
}

func (c *recordConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writes = append(c.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (c *recordConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.writes)
}

func (c *recordConn) ReadFrom(p []byte) (int, net.Addr, error) {
	select {}
}

func (c *recordConn) Close() error                       { return nil }
func (c *recordConn) LocalAddr() net.Addr                { return testAddr }
func (c *recordConn) SetDeadline(t time.Time) error      { return nil }
func (c *recordConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *recordConn) SetWriteDeadline(t time.Time) error { return nil }

var testAddr = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}

func TestNextSeqStrictlyIncreasing(t *testing.T) {
	r := NewReliabilityLayerWith(&recordConn{}, time.Hour, 3)
	defer r.Close()

	prev := r.NextSeq()
	if prev != 1 {
		t.Fatalf("first sequence number is %d, want 1", prev)
	}

	for i := 0; i < 999; i++ {
		seq := r.NextSeq()
		if seq <= prev {
			t.Fatalf("sequence went from %d to %d", prev, seq)
		}
		prev = seq
	}
}

func TestSendAssignsSequence(t *testing.T) {
	conn := &recordConn{}
	r := NewReliabilityLayerWith(conn, time.Hour, 3)
	defer r.Close()

	msg := NewMsg(TypeAttackAnnounce).Set("move_name", "tackle")
	if err := r.Send(msg, testAddr); err != nil {
		t.Fatal(err)
	}

	if msg.Seq() != 1 {
		t.Fatalf("expected sequence 1, got %d", msg.Seq())
	}
	if conn.count() != 1 {
		t.Fatalf("expected 1 transmission, got %d", conn.count())
	}
	if r.PendingCount() != 1 {
		t.Fatalf("expected 1 pending send, got %d", r.PendingCount())
	}
}

func TestAcksAreNotSequencedOrTracked(t *testing.T) {
	conn := &recordConn{}
	r := NewReliabilityLayerWith(conn, time.Hour, 3)
	defer r.Close()

	if err := r.Send(Ack(7), testAddr); err != nil {
		t.Fatal(err)
	}

	if r.PendingCount() != 0 {
		t.Fatal("ack was tracked for retransmission")
	}

	msg := ParseMsg(conn.writes[0])
	if msg.Seq() != 0 {
		t.Fatal("ack carries a sequence number")
	}
	if msg.Int("ack_number") != 7 {
		t.Fatalf("expected ack_number 7, got %d", msg.Int("ack_number"))
	}
}

func TestAckBeforeTimeoutSendsOnce(t *testing.T) {
	conn := &recordConn{}
	r := NewReliabilityLayerWith(conn, 100*time.Millisecond, 3)
	defer r.Close()

	msg := NewMsg(TypeAttackAnnounce).Set("move_name", "tackle")
	if err := r.Send(msg, testAddr); err != nil {
		t.Fatal(err)
	}

	r.Ack(msg.Seq())
	r.Ack(msg.Seq()) // second ack is a no-op

	time.Sleep(400 * time.Millisecond)

	if conn.count() != 1 {
		t.Fatalf("expected exactly 1 transmission, got %d", conn.count())
	}
	if r.PendingCount() != 0 {
		t.Fatalf("expected no pending sends, got %d", r.PendingCount())
	}
}

func TestUnackedRetransmitsUntilCeiling(t *testing.T) {
	conn := &recordConn{}
	r := NewReliabilityLayerWith(conn, 60*time.Millisecond, 2)
	defer r.Close()

	msg := NewMsg(TypeAttackAnnounce).Set("move_name", "tackle")
	if err := r.Send(msg, testAddr); err != nil {
		t.Fatal(err)
	}

	time.Sleep(700 * time.Millisecond)

	// Original transmission plus maxRetries retransmissions.
	if conn.count() != 3 {
		t.Fatalf("expected 3 transmissions, got %d", conn.count())
	}
	if r.PendingCount() != 0 {
		t.Fatalf("abandoned send still pending: %d", r.PendingCount())
	}

	// Retransmissions carry the same bytes and sequence number.
	for i, w := range conn.writes {
		if string(w) != string(conn.writes[0]) {
			t.Fatalf("transmission %d differs from the original", i)
		}
	}
}

func TestSendAfterCloseFails(t *testing.T) {
	conn := &recordConn{}
	r := NewReliabilityLayerWith(conn, time.Hour, 3)
	r.Close()

	err := r.Send(NewMsg(TypeAttackAnnounce), testAddr)
	if err != net.ErrClosed {
		t.Fatalf("expected net.ErrClosed, got %v", err)
	}
	if conn.count() != 0 {
		t.Fatal("transmitted on closed layer")
	}
}
