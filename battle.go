package pokebattle

import (
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"
)

// A Role decides which side of the handshake a node plays
type Role string

const (
	RoleHost      Role = "host"
	RoleJoiner    Role = "joiner"
	RoleSpectator Role = "spectator"
)

// ErrBattleOver is returned by actions attempted after the
// battle has ended
var ErrBattleOver = errors.New("battle is over")

// StatBoosts tracks the per-session move resource counters
type StatBoosts struct {
	SpecialAttackUses  int
	SpecialDefenseUses int
}

// Dict returns the wire form of b
func (b StatBoosts) Dict() *Dict {
	d := NewDict()
	d.Set("special_attack_uses", b.SpecialAttackUses)
	d.Set("special_defense_uses", b.SpecialDefenseUses)

	return d
}

// A BattleState is the shared mutable state both peers keep in
// sync: creature snapshots, health values and turn ownership.
// One BattleState belongs to exactly one session.
type BattleState struct {
	mu sync.Mutex

	myName          string
	myPokemonName   string
	peerName        string
	peerPokemonName string

	myPokemon   Pokemon
	peerPokemon Pokemon

	myHP   int
	peerHP int

	myTurn bool
	boosts StatBoosts
	seed   int64

	over   bool
	winner string
	loser  string

	// lastAnnounced is my attack awaiting the peer's defense
	// announcement; lastIncoming is the peer's announced attack.
	lastAnnounced string
	lastIncoming  string

	peerBoosts StatBoosts
}

// NewBattleState returns a BattleState for a session that has not
// picked creatures yet. Health defaults to 100 until a snapshot
// replaces it.
func NewBattleState(myName string) *BattleState {
	return &BattleState{
		myName:   myName,
		peerName: "Peer",
		myHP:     100,
		peerHP:   100,
		boosts:   StatBoosts{SpecialAttackUses: 5, SpecialDefenseUses: 5},
	}
}

// Status returns both health values and whose turn it is
func (s *BattleState) Status() (myHP, peerHP int, myTurn bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.myHP, s.peerHP, s.myTurn
}

// Names returns both creature names
func (s *BattleState) Names() (mine, peer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.myPokemonName, s.peerPokemonName
}

// Boosts returns both sides' stat boost counters
func (s *BattleState) Boosts() (mine, peer StatBoosts) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.boosts, s.peerBoosts
}

// Over reports whether the battle has ended and who won
func (s *BattleState) Over() (over bool, winner, loser string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.over, s.winner, s.loser
}

// Seed returns the session seed exchanged during the handshake
func (s *BattleState) Seed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.seed
}

// finishLocked records the terminal result once
func (s *BattleState) finishLocked(winner, loser string) bool {
	if s.over {
		return false
	}

	s.over = true
	s.winner = winner
	s.loser = loser

	return true
}

// A Battle drives the turn consistency protocol on top of a
// PeerNode: handshake, setup, attack/defense exchange, independent
// damage computation, comparison and resolution.
type Battle struct {
	state *BattleState
	dex   StatSource
	moves MoveSet
	role  Role

	ready     chan struct{} // close-only
	readyOnce sync.Once

	// OnChat, if set, observes incoming chat messages.
	// kind is "TEXT" or "STICKER"; body is the message text or
	// the base64 sticker payload.
	OnChat func(sender, kind, body string)
}

// NewBattle returns a Battle around state.
// Its Handle method is the node's application handler.
func NewBattle(state *BattleState, dex StatSource, moves MoveSet, role Role) *Battle {
	return &Battle{
		state: state,
		dex:   dex,
		moves: moves,
		role:  role,
		ready: make(chan struct{}),
	}
}

// State returns the battle's shared state
func (b *Battle) State() *BattleState { return b.state }

// Ready returns a channel that is closed once the session
// handshake has completed
func (b *Battle) Ready() <-chan struct{} { return b.ready }

func (b *Battle) markReady() {
	b.readyOnce.Do(func() { close(b.ready) })
}

// lookupPokemon resolves name against the injected stat source,
// falling back to the default record
func (b *Battle) lookupPokemon(name string) Pokemon {
	if b.dex != nil {
		if p, ok := b.dex.Pokemon(name); ok {
			return p
		}
	}

	return DefaultPokemon(name)
}

// SendSetup picks own creature by name and announces it to the
// peer with a full snapshot
func (b *Battle) SendSetup(node *PeerNode, name string) error {
	p := b.lookupPokemon(name)

	s := b.state
	s.mu.Lock()
	s.myPokemonName = name
	s.myPokemon = p
	s.myHP = p.HP
	boosts := s.boosts
	s.mu.Unlock()

	msg := NewMsg(TypeBattleSetup).
		Set("communication_mode", "P2P").
		Set("pokemon_name", name).
		Set("stat_boosts", boosts.Dict()).
		Set("pokemon", p.Dict())

	return node.Send(msg)
}

// Announce announces an attack with the given move.
// It fails after the battle has ended.
func (b *Battle) Announce(node *PeerNode, move string) error {
	s := b.state
	s.mu.Lock()
	if s.over {
		s.mu.Unlock()
		return ErrBattleOver
	}
	s.lastAnnounced = move
	s.mu.Unlock()

	return node.Send(NewMsg(TypeAttackAnnounce).Set("move_name", move))
}

// Handle reacts to one inbound message. It is the application
// handler wired into the PeerNode and runs once per deduplicated
// message, possibly concurrently with itself.
func (b *Battle) Handle(msg *Msg, src net.Addr, node *PeerNode) {
	switch msg.Type() {
	case TypeHandshakeRequest:
		b.handleHandshakeRequest(src, node)
	case TypeHandshakeResponse:
		b.handleHandshakeResponse(msg)
	case TypeSpectatorRequest:
		b.handleSpectatorRequest(src, node)
	case TypeBattleSetup:
		b.handleBattleSetup(msg)
	case TypeAttackAnnounce:
		b.handleAttackAnnounce(msg, src, node)
	case TypeDefenseAnnounce:
		b.handleDefenseAnnounce(src, node)
	case TypeCalcReport:
		b.handleCalcReport(msg, src, node)
	case TypeCalcConfirm:
		b.handleCalcConfirm(src, node)
	case TypeResolutionRequest:
		b.handleResolutionRequest(msg, src, node)
	case TypeGameOver:
		b.handleGameOver(msg)
	case TypeChatMessage:
		b.handleChat(msg)
	default:
		log.Print("ignoring unknown message type ", msg.Type())
	}
}

func (b *Battle) handleHandshakeRequest(src net.Addr, node *PeerNode) {
	if b.role != RoleHost {
		return
	}

	seed := time.Now().Unix() & 0x7fffffff

	s := b.state
	s.mu.Lock()
	s.seed = seed
	s.mu.Unlock()

	resp := NewMsg(TypeHandshakeResponse).Set("seed", int(seed))
	if err := node.SendTo(resp, src); err != nil {
		log.Print("handshake response: ", err)
		return
	}

	log.Printf("handshake from %v, seed %d", src, seed)
	b.markReady()
}

func (b *Battle) handleHandshakeResponse(msg *Msg) {
	if b.role == RoleHost {
		return
	}

	seed := msg.Int("seed")

	s := b.state
	s.mu.Lock()
	s.seed = int64(seed)
	s.mu.Unlock()

	log.Print("session established, seed ", seed)
	b.markReady()
}

func (b *Battle) handleSpectatorRequest(src net.Addr, node *PeerNode) {
	if b.role != RoleHost {
		return
	}

	// Spectators get a null seed and no reliability tracking
	// beyond this reply.
	resp := NewMsg(TypeHandshakeResponse).Set("seed", 0)
	if err := node.SendTo(resp, src); err != nil {
		log.Print("spectator response: ", err)
	}
}

func (b *Battle) handleBattleSetup(msg *Msg) {
	name := msg.Str("pokemon_name")

	var p Pokemon
	ok := false

	if msg.Has("pokemon") {
		d, err := msg.DictVal("pokemon")
		if err == nil {
			p, err = PokemonFromDict(d)
		}
		if err != nil {
			log.Print("setup snapshot rejected, using local stats: ", err)
		} else {
			ok = true
		}
	}

	if !ok {
		p = b.lookupPokemon(name)
	}

	var peerBoosts StatBoosts
	if d, err := msg.DictVal("stat_boosts"); err == nil {
		sa, _ := d.Get("special_attack_uses")
		sd, _ := d.Get("special_defense_uses")
		if n, ok := toInt(sa); ok {
			peerBoosts.SpecialAttackUses = n
		}
		if n, ok := toInt(sd); ok {
			peerBoosts.SpecialDefenseUses = n
		}
	}

	s := b.state
	s.mu.Lock()
	s.peerPokemonName = name
	s.peerPokemon = p
	s.peerHP = p.HP
	s.peerBoosts = peerBoosts
	hp := s.peerHP
	s.mu.Unlock()

	log.Printf("opponent chose %s (HP %d)", name, hp)
}

func (b *Battle) handleAttackAnnounce(msg *Msg, src net.Addr, node *PeerNode) {
	move := msg.Str("move_name")
	if move == "" {
		move = "tackle"
	}

	s := b.state
	s.mu.Lock()
	if s.over {
		s.mu.Unlock()
		return
	}
	s.lastIncoming = move
	s.mu.Unlock()

	log.Print("opponent announced ", move)

	if err := node.SendTo(NewMsg(TypeDefenseAnnounce), src); err != nil {
		log.Print("defense announce: ", err)
	}
}

// handleDefenseAnnounce runs on the attacker: the defender is
// ready, so compute the damage of our announced move, apply it to
// our record of the peer and report the numbers for verification.
func (b *Battle) handleDefenseAnnounce(src net.Addr, node *PeerNode) {
	s := b.state
	s.mu.Lock()
	if s.over {
		s.mu.Unlock()
		return
	}

	move := s.lastAnnounced
	if move == "" {
		move = "tackle"
	}

	mv := b.moves.Lookup(move)
	atk, def := attackStats(mv, s.myPokemon, s.peerPokemon)
	eff := s.peerPokemon.Effectiveness(mv.Type)

	dmg := ComputeDamage(atk, def, float64(mv.Power), eff, 1.0, BattleLevel)
	s.peerHP = max(0, s.peerHP-dmg)

	report := NewMsg(TypeCalcReport).
		Set("attacker", s.myPokemonName).
		Set("move_used", move).
		Set("remaining_health", s.myHP).
		Set("damage_dealt", dmg).
		Set("defender_hp_remaining", s.peerHP).
		Set("status_message", fmt.Sprintf("Used %s (x%v)", move, eff))
	s.mu.Unlock()

	if err := node.SendTo(report, src); err != nil {
		log.Print("calculation report: ", err)
	}
}

// handleCalcReport verifies the peer's arithmetic. If the report
// names the peer's creature we were attacked and recompute the
// damage ourselves; if it names ours it is our own attack echoed
// back and we check the health bookkeeping instead.
func (b *Battle) handleCalcReport(msg *Msg, src net.Addr, node *PeerNode) {
	attacker := msg.Str("attacker")
	moveName := msg.Str("move_used")

	s := b.state
	s.mu.Lock()
	if s.over {
		s.mu.Unlock()
		return
	}

	// A report may omit the move; fall back to what was announced
	// for this turn.
	fromPeer := strings.EqualFold(attacker, s.peerPokemonName)
	if moveName == "" {
		if fromPeer {
			moveName = s.lastIncoming
		} else {
			moveName = s.lastAnnounced
		}
	}
	if moveName == "" {
		moveName = "tackle"
	}
	mv := b.moves.Lookup(moveName)

	var reply *Msg

	if fromPeer {
		atk, def := attackStats(mv, s.peerPokemon, s.myPokemon)
		eff := s.myPokemon.Effectiveness(mv.Type)

		local := ComputeDamage(atk, def, float64(mv.Power), eff, 1.0, BattleLevel)
		reported := msg.Int("damage_dealt")

		if local == reported {
			s.myHP = max(0, s.myHP-local)
			s.myTurn = !s.myTurn
			reply = NewMsg(TypeCalcConfirm)
			log.Printf("verified, took %d damage", local)
		} else {
			log.Printf("damage mismatch: local %d, reported %d", local, reported)
			reply = NewMsg(TypeResolutionRequest).
				Set("attacker", attacker).
				Set("move_used", moveName).
				Set("damage_dealt", local).
				Set("defender_hp_remaining", s.myHP)
		}
	} else {
		// Our own attack echoed back; only the peer health
		// bookkeeping needs to agree.
		reported := msg.Int("defender_hp_remaining")
		if reported == s.peerHP {
			reply = NewMsg(TypeCalcConfirm)
		} else {
			log.Printf("health mismatch: local %d, reported %d", s.peerHP, reported)
			reply = NewMsg(TypeResolutionRequest).
				Set("attacker", attacker).
				Set("move_used", moveName).
				Set("damage_dealt", msg.Int("damage_dealt")).
				Set("defender_hp_remaining", s.peerHP)
		}
	}
	s.mu.Unlock()

	if err := node.SendTo(reply, src); err != nil {
		log.Print("report reply: ", err)
	}
}

func (b *Battle) handleCalcConfirm(src net.Addr, node *PeerNode) {
	s := b.state
	s.mu.Lock()

	s.myTurn = !s.myTurn
	myTurn := s.myTurn

	var gameOver *Msg
	switch {
	case s.myHP <= 0:
		if s.finishLocked(s.peerPokemonName, s.myPokemonName) {
			gameOver = NewMsg(TypeGameOver).
				Set("winner", s.peerPokemonName).
				Set("loser", s.myPokemonName)
		}
	case s.peerHP <= 0:
		if s.finishLocked(s.myPokemonName, s.peerPokemonName) {
			gameOver = NewMsg(TypeGameOver).
				Set("winner", s.myPokemonName).
				Set("loser", s.peerPokemonName)
		}
	}
	s.mu.Unlock()

	log.Print("turn confirmed, my turn: ", myTurn)

	if gameOver != nil {
		if err := node.SendTo(gameOver, src); err != nil {
			log.Print("game over: ", err)
		}
	}
}

// handleResolutionRequest adopts the peer's asserted health value
// as authoritative; the last writer wins. The bare ack is
// informational, the transport already acked the sequence number.
func (b *Battle) handleResolutionRequest(msg *Msg, src net.Addr, node *PeerNode) {
	theirHP := msg.Int("defender_hp_remaining")
	attacker := msg.Str("attacker")

	s := b.state
	s.mu.Lock()
	if strings.EqualFold(attacker, s.myPokemonName) {
		s.peerHP = theirHP
	} else {
		s.myHP = theirHP
	}
	s.mu.Unlock()

	if seq := msg.Seq(); seq > 0 {
		if err := node.SendUnrel(Ack(seq), src); err != nil {
			log.Print("resolution ack: ", err)
		}
	}

	log.Print("state updated from peer resolution")
}

func (b *Battle) handleGameOver(msg *Msg) {
	winner := msg.Str("winner")
	loser := msg.Str("loser")

	s := b.state
	s.mu.Lock()
	s.finishLocked(winner, loser)
	s.mu.Unlock()

	log.Print("game over, winner: ", winner)
}
