package pokebattle

import (
	"strconv"
	"strings"
)

// Message types understood by the protocol
const (
	TypeHandshakeRequest  = "HANDSHAKE_REQUEST"
	TypeHandshakeResponse = "HANDSHAKE_RESPONSE"
	TypeSpectatorRequest  = "SPECTATOR_REQUEST"
	TypeBattleSetup       = "BATTLE_SETUP"
	TypeAttackAnnounce    = "ATTACK_ANNOUNCE"
	TypeDefenseAnnounce   = "DEFENSE_ANNOUNCE"
	TypeCalcReport        = "CALCULATION_REPORT"
	TypeCalcConfirm       = "CALCULATION_CONFIRM"
	TypeResolutionRequest = "RESOLUTION_REQUEST"
	TypeGameOver          = "GAME_OVER"
	TypeChatMessage       = "CHAT_MESSAGE"
	TypeAck               = "ACK"
)

// MaxDatagramSize is the largest payload that fits
// into a single UDP datagram
const MaxDatagramSize = 65507

type field struct {
	key   string
	value interface{}
}

// A Msg is a single protocol message: an insertion-ordered
// mapping of field names to values
// Values set by the sender may be strings, ints, floats,
// *Dict or []interface{}; values produced by ParseMsg are
// always strings and are converted by the accessors
type Msg struct {
	fields []field
}

// NewMsg returns a Msg with its message_type field set
func NewMsg(mtype string) *Msg {
	m := &Msg{}
	return m.Set("message_type", mtype)
}

// Ack returns an acknowledgment for seq
// Acks carry no sequence number of their own
func Ack(seq int) *Msg {
	return NewMsg(TypeAck).Set("ack_number", seq)
}

// Set sets key to v, keeping the position of key
// if it is already present
func (m *Msg) Set(key string, v interface{}) *Msg {
	for i := range m.fields {
		if m.fields[i].key == key {
			m.fields[i].value = v
			return m
		}
	}

	m.fields = append(m.fields, field{key, v})
	return m
}

// Get returns the raw value of key
func (m *Msg) Get(key string) (interface{}, bool) {
	for i := range m.fields {
		if m.fields[i].key == key {
			return m.fields[i].value, true
		}
	}

	return nil, false
}

// Has reports whether key is present
func (m *Msg) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Str returns the value of key as a string
// or "" if it is missing
func (m *Msg) Str(key string) string {
	v, ok := m.Get(key)
	if !ok {
		return ""
	}

	return formatValue(v)
}

// Int returns the value of key as an int
// or 0 if it is missing or unparsable
func (m *Msg) Int(key string) int {
	v, ok := m.Get(key)
	if !ok {
		return 0
	}

	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return i
	}

	return 0
}

// Float returns the value of key as a float64
// or def if it is missing or unparsable
func (m *Msg) Float(key string, def float64) float64 {
	v, ok := m.Get(key)
	if !ok {
		return def
	}

	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return def
		}
		return f
	}

	return def
}

// DictVal returns the value of key as a *Dict, parsing the
// literal form if the message came off the wire
func (m *Msg) DictVal(key string) (*Dict, error) {
	v, ok := m.Get(key)
	if !ok {
		return nil, ErrBadLiteral
	}

	if d, ok := v.(*Dict); ok {
		return d, nil
	}

	s, ok := v.(string)
	if !ok {
		return nil, ErrBadLiteral
	}

	lit, err := ParseLiteral(s)
	if err != nil {
		return nil, err
	}

	d, ok := lit.(*Dict)
	if !ok {
		return nil, ErrBadLiteral
	}

	return d, nil
}

// Type returns the message_type field
func (m *Msg) Type() string { return m.Str("message_type") }

// Seq returns the sequence number of the Msg or 0 if it has none
func (m *Msg) Seq() int { return m.Int("sequence_number") }

// Bytes serializes the Msg into its wire form:
// one "key: value" line per field
func (m *Msg) Bytes() []byte {
	var b strings.Builder
	for i, f := range m.fields {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(f.key)
		b.WriteString(": ")
		b.WriteString(formatValue(f.value))
	}

	return []byte(b.String())
}

func formatValue(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		return formatFloat(s)
	default:
		return EncodeLiteral(v)
	}
}

// ParseMsg decodes a datagram into a Msg.
// All values are left as strings. Lines without a colon are
// skipped. It returns nil if no valid field is found.
func ParseMsg(data []byte) *Msg {
	text := string(data)

	m := &Msg{}
	for _, ln := range strings.Split(text, "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}

		colon := strings.Index(ln, ":")
		if colon < 0 {
			continue
		}

		key := strings.TrimSpace(ln[:colon])
		value := strings.TrimSpace(ln[colon+1:])
		if key == "" {
			continue
		}

		m.Set(key, value)
	}

	if len(m.fields) == 0 {
		return nil
	}

	return m
}
