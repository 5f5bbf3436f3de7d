package pokebattle

import (
	"errors"
	"testing"
)

func TestSerializeWireFormat(t *testing.T) {
	msg := NewMsg(TypeAttackAnnounce).
		Set("sequence_number", 7).
		Set("move_name", "tackle")

	want := "message_type: ATTACK_ANNOUNCE\nsequence_number: 7\nmove_name: tackle"
	if got := string(msg.Bytes()); got != want {
		t.Fatalf("wire form mismatch:\ngot  %q\nwant %q", got, want)
	}
}

func TestParseSkipsMalformedLines(t *testing.T) {
	raw := "garbage without colon\nmessage_type: ATTACK_ANNOUNCE\n\nmove_name: vine whip\n: nokey"

	msg := ParseMsg([]byte(raw))
	if msg == nil {
		t.Fatal("expected a message")
	}

	if msg.Type() != TypeAttackAnnounce {
		t.Fatalf("got type %q", msg.Type())
	}
	if msg.Str("move_name") != "vine whip" {
		t.Fatalf("got move %q", msg.Str("move_name"))
	}
	if msg.Has("") {
		t.Fatal("kept a field with an empty key")
	}
}

func TestParseUndecodable(t *testing.T) {
	if msg := ParseMsg(nil); msg != nil {
		t.Fatal("parsed an empty datagram")
	}
	if msg := ParseMsg([]byte("no fields here")); msg != nil {
		t.Fatal("parsed a datagram without fields")
	}
}

func TestParsedValuesConvertOnDemand(t *testing.T) {
	msg := ParseMsg([]byte("message_type: CALCULATION_REPORT\ndamage_dealt: 42\nbad: x"))

	if msg.Int("damage_dealt") != 42 {
		t.Fatalf("got %d", msg.Int("damage_dealt"))
	}
	if msg.Int("bad") != 0 {
		t.Fatal("unparsable int should be 0")
	}
	if msg.Float("missing", 1.0) != 1.0 {
		t.Fatal("missing float should fall back to default")
	}
}

func TestSetKeepsOrderAndReplaces(t *testing.T) {
	msg := NewMsg(TypeChatMessage).Set("a", 1).Set("b", 2).Set("a", 3)

	want := "message_type: CHAT_MESSAGE\na: 3\nb: 2"
	if got := string(msg.Bytes()); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEncodeLiteral(t *testing.T) {
	d := NewDict()
	d.Set("name", "Pikachu")
	d.Set("hp", 35)
	d.Set("mult", 1.0)
	d.Set("tags", []interface{}{"electric", 2})

	want := `{'name': 'Pikachu', 'hp': 35, 'mult': 1.0, 'tags': ['electric', 2]}`
	if got := EncodeLiteral(d); got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestLiteralRoundTrip(t *testing.T) {
	in := `{'name': 'Mr. Mime\'s', 'hp': 40, 'eff': 0.5, 'ok': True, 'none': None, 'l': [1, 2]}`

	v, err := ParseLiteral(in)
	if err != nil {
		t.Fatal(err)
	}

	d, ok := v.(*Dict)
	if !ok {
		t.Fatalf("got %T", v)
	}

	if name, _ := d.Get("name"); name != "Mr. Mime's" {
		t.Fatalf("got name %v", name)
	}
	if hp, _ := d.Get("hp"); hp != 40 {
		t.Fatalf("got hp %v", hp)
	}
	if eff, _ := d.Get("eff"); eff != 0.5 {
		t.Fatalf("got eff %v", eff)
	}
	if b, _ := d.Get("ok"); b != true {
		t.Fatalf("got ok %v", b)
	}
	if n, _ := d.Get("none"); n != nil {
		t.Fatalf("got none %v", n)
	}

	l, _ := d.Get("l")
	if len(l.([]interface{})) != 2 {
		t.Fatalf("got list %v", l)
	}
}

func TestLiteralRejectsNonLiterals(t *testing.T) {
	for _, in := range []string{
		`__import__('os')`,
		`{'a': 1} extra`,
		`{'a': }`,
		`{1: 'a'}`,
		`'unterminated`,
		`[1, 2`,
		``,
	} {
		if _, err := ParseLiteral(in); !errors.Is(err, ErrBadLiteral) {
			t.Fatalf("%q: expected ErrBadLiteral, got %v", in, err)
		}
	}
}

func TestSnapshotSchema(t *testing.T) {
	p := Pokemon{
		Name: "Charmander", HP: 39,
		Attack: 52, Defense: 43, SpAttack: 60, SpDefense: 50, Speed: 65,
		Type1: "fire",
		Against: map[string]float64{
			"water": 2.0, "fire": 0.5,
		},
	}

	got, err := PokemonFromDict(p.Dict())
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != p.Name || got.HP != p.HP || got.SpDefense != p.SpDefense {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Effectiveness("water") != 2.0 || got.Effectiveness("normal") != 1.0 {
		t.Fatal("matchups lost in round trip")
	}
}

func TestSnapshotRejectsUnknownFields(t *testing.T) {
	d := NewDict()
	d.Set("name", "Pikachu")
	d.Set("exec", "rm -rf /")

	if _, err := PokemonFromDict(d); !errors.Is(err, ErrBadLiteral) {
		t.Fatalf("expected ErrBadLiteral, got %v", err)
	}

	d2 := NewDict()
	d2.Set("name", "Pikachu")
	d2.Set("hp", "not a number")

	if _, err := PokemonFromDict(d2); !errors.Is(err, ErrBadLiteral) {
		t.Fatalf("expected ErrBadLiteral, got %v", err)
	}

	d3 := NewDict()
	d3.Set("name", "Pikachu")
	raw := NewDict()
	raw.Set("against_fire", NewDict())
	d3.Set("raw_row", raw)

	if _, err := PokemonFromDict(d3); !errors.Is(err, ErrBadLiteral) {
		t.Fatalf("expected ErrBadLiteral, got %v", err)
	}
}
