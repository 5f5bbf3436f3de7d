package pokebattle

import (
	"errors"
	"log"
	"net"
	"sync"
	"time"
)

// ErrNoDestination is returned by Send when no explicit address is
// given and no peer address has been discovered yet
var ErrNoDestination = errors.New("no destination address specified")

// A Handler is called once per deduplicated inbound message.
// Handlers run on their own goroutine and may call back into
// the PeerNode.
type Handler func(msg *Msg, src net.Addr, node *PeerNode)

// A PeerNode is one endpoint of a session. It owns the datagram
// socket, acknowledges and deduplicates sequenced inbound messages
// and dispatches the rest to the application handler.
type PeerNode struct {
	conn net.PacketConn
	rel  *ReliabilityLayer
	seen *seenSet

	mu       sync.RWMutex
	peerAddr net.Addr
	handler  Handler
	closed   bool

	done chan struct{} // close-only
}

// NewPeerNode binds a UDP socket on addr and starts the receive
// loop. handler may be nil and set later with SetHandler.
func NewPeerNode(addr string, handler Handler) (*PeerNode, error) {
	return NewPeerNodeWith(addr, handler, RetransmitTimeout, MaxRetries)
}

// NewPeerNodeWith is NewPeerNode with explicit retransmission tuning
func NewPeerNodeWith(addr string, handler Handler, timeout time.Duration, maxRetries int) (*PeerNode, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}

	return newPeerNode(conn, handler, timeout, maxRetries), nil
}

func newPeerNode(conn net.PacketConn, handler Handler, timeout time.Duration, maxRetries int) *PeerNode {
	n := &PeerNode{
		conn:    conn,
		rel:     NewReliabilityLayerWith(conn, timeout, maxRetries),
		seen:    newSeenSet(),
		handler: handler,
		done:    make(chan struct{}),
	}

	go n.recvLoop()

	return n
}

// Addr returns the local address of the node's socket
func (n *PeerNode) Addr() net.Addr { return n.conn.LocalAddr() }

// PeerAddr returns the tracked peer address or nil
func (n *PeerNode) PeerAddr() net.Addr {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return n.peerAddr
}

// SetPeerAddr sets the tracked peer address
func (n *PeerNode) SetPeerAddr(addr net.Addr) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.peerAddr = addr
}

// SetHandler sets the application handler
func (n *PeerNode) SetHandler(h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.handler = h
}

// Rel returns the node's reliability layer
func (n *PeerNode) Rel() *ReliabilityLayer { return n.rel }

// Send sends msg to the tracked peer through the reliability layer
func (n *PeerNode) Send(msg *Msg) error {
	addr := n.PeerAddr()
	if addr == nil {
		return ErrNoDestination
	}

	return n.SendTo(msg, addr)
}

// SendTo sends msg to addr through the reliability layer
func (n *PeerNode) SendTo(msg *Msg, addr net.Addr) error {
	if addr == nil {
		return ErrNoDestination
	}

	return n.rel.Send(msg, addr)
}

// SendUnrel transmits msg to addr exactly once, bypassing sequence
// assignment and retransmission tracking. Used for acknowledgments,
// which are never themselves acknowledged.
func (n *PeerNode) SendUnrel(msg *Msg, addr net.Addr) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		return net.ErrClosed
	}

	_, err := n.conn.WriteTo(msg.Bytes(), addr)
	return err
}

// Close stops the receive loop and the reliability layer and
// releases the socket. Sends after Close fail with net.ErrClosed.
func (n *PeerNode) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return net.ErrClosed
	}
	n.closed = true
	n.mu.Unlock()

	close(n.done)
	n.rel.Close()

	return n.conn.Close()
}

// Done returns a channel that is closed when the node shuts down
func (n *PeerNode) Done() <-chan struct{} { return n.done }

func (n *PeerNode) recvLoop() {
	buf := make([]byte, MaxDatagramSize)

	for {
		nn, addr, err := n.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			select {
			case <-n.done:
				return
			default:
			}

			// Transient receive errors (e.g. ICMP port unreachable
			// surfacing as ECONNRESET) are never fatal to the node.
			log.Print("recv: ", err)
			continue
		}

		data := make([]byte, nn)
		copy(data, buf[:nn])

		n.processDatagram(data, addr)
	}
}

func (n *PeerNode) processDatagram(data []byte, src net.Addr) {
	msg := ParseMsg(data)
	if msg == nil || msg.Type() == "" {
		return
	}

	if msg.Type() == TypeAck {
		if ack := msg.Int("ack_number"); ack > 0 {
			n.rel.Ack(ack)
		}

		// Acks never reach the application and never
		// trigger an ack of their own.
		return
	}

	if seq := msg.Seq(); seq > 0 {
		if err := n.SendUnrel(Ack(seq), src); err != nil {
			log.Print("ack: ", err)
		}

		if !n.seen.add(seq) {
			// Duplicate: acked again above, dropped here.
			return
		}
	}

	n.mu.Lock()
	if n.peerAddr == nil && establishesSession(msg.Type()) {
		n.peerAddr = src
		log.Print("peer address set to ", src)
	}
	h := n.handler
	n.mu.Unlock()

	if h != nil {
		go h(msg, src, n)
	}
}

func establishesSession(mtype string) bool {
	switch mtype {
	case TypeHandshakeRequest, TypeSpectatorRequest, TypeHandshakeResponse:
		return true
	}

	return false
}
