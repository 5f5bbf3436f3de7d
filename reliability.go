package pokebattle

import (
	"log"
	"net"
	"sync"
	"time"
)

const (
	// RetransmitTimeout is how long a sequenced message may stay
	// unacknowledged before it is sent again
	RetransmitTimeout = 500 * time.Millisecond

	// MaxRetries is how often an unacknowledged message is resent
	// before the layer gives up on it
	MaxRetries = 3

	// retryPollInterval is how often the pending table is scanned
	retryPollInterval = 50 * time.Millisecond
)

// A PendingSend is a sequenced message that has been transmitted
// but not acknowledged yet
type PendingSend struct {
	payload  []byte
	dest     net.Addr
	seq      int
	lastSent time.Time
	retries  int
	msg      *Msg
}

// A ReliabilityLayer assigns sequence numbers to outbound messages
// and resends them until they are acknowledged or the retry
// ceiling is reached.
// All exported methods are safe for concurrent use.
type ReliabilityLayer struct {
	conn       net.PacketConn
	timeout    time.Duration
	maxRetries int

	mu      sync.Mutex
	pending map[int]*PendingSend
	nextSeq int

	done chan struct{} // close-only
}

// NewReliabilityLayer returns a running ReliabilityLayer with the
// default retransmission timeout and retry ceiling
func NewReliabilityLayer(conn net.PacketConn) *ReliabilityLayer {
	return NewReliabilityLayerWith(conn, RetransmitTimeout, MaxRetries)
}

// NewReliabilityLayerWith is NewReliabilityLayer with explicit
// retransmission tuning
func NewReliabilityLayerWith(conn net.PacketConn, timeout time.Duration, maxRetries int) *ReliabilityLayer {
	r := &ReliabilityLayer{
		conn:       conn,
		timeout:    timeout,
		maxRetries: maxRetries,
		pending:    make(map[int]*PendingSend),
		nextSeq:    1,
		done:       make(chan struct{}),
	}

	go r.retransmitLoop()

	return r
}

// NextSeq returns the next outbound sequence number.
// Sequence numbers start at 1, strictly increase and are
// never reused within a session.
func (r *ReliabilityLayer) NextSeq() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	seq := r.nextSeq
	r.nextSeq++

	return seq
}

// Send transmits msg to dest exactly once and, if it carries a
// sequence number, tracks it for retransmission.
// Non-ack messages without a sequence number are assigned one.
// Send never waits for the acknowledgment.
func (r *ReliabilityLayer) Send(msg *Msg, dest net.Addr) error {
	if msg.Type() != TypeAck && !msg.Has("sequence_number") {
		msg.Set("sequence_number", r.NextSeq())
	}

	payload := msg.Bytes()
	seq := msg.Seq()

	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.done:
		return net.ErrClosed
	default:
	}

	if _, err := r.conn.WriteTo(payload, dest); err != nil {
		return err
	}

	if seq > 0 {
		r.pending[seq] = &PendingSend{
			payload:  payload,
			dest:     dest,
			seq:      seq,
			lastSent: time.Now(),
			msg:      msg,
		}
	}

	return nil
}

// Ack removes the PendingSend with the given sequence number.
// Acknowledging an unknown or already acknowledged number is a no-op.
func (r *ReliabilityLayer) Ack(seq int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.pending, seq)
}

// PendingCount reports how many messages await acknowledgment
func (r *ReliabilityLayer) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.pending)
}

// Close stops the retransmission timer and drops all pending
// state. It does not close the underlying socket.
func (r *ReliabilityLayer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.done:
		return
	default:
	}

	close(r.done)
	r.pending = make(map[int]*PendingSend)
}

func (r *ReliabilityLayer) retransmitLoop() {
	t := time.NewTicker(retryPollInterval)
	defer t.Stop()

	for {
		select {
		case <-r.done:
			return
		case now := <-t.C:
			r.retransmitDue(now)
		}
	}
}

// retransmitDue resends every pending message whose age exceeds the
// timeout and removes the ones that have exhausted their retries.
// Holding the table lock across the writes keeps retransmissions
// from racing Close.
func (r *ReliabilityLayer) retransmitDue(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.done:
		return
	default:
	}

	for seq, pm := range r.pending {
		if now.Sub(pm.lastSent) < r.timeout {
			continue
		}

		if pm.retries >= r.maxRetries {
			// Give up silently; delivery exhaustion is not an error
			// to the sender.
			log.Printf("seq %d exceeded %d retries, giving up", seq, r.maxRetries)
			delete(r.pending, seq)
			continue
		}

		pm.retries++
		pm.lastSent = now
		if _, err := r.conn.WriteTo(pm.payload, pm.dest); err != nil {
			log.Print("retransmit: ", err)
		}
	}
}
