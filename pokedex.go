package pokebattle

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// A Pokemon is one creature's static stats plus its per-type
// damage resistances
type Pokemon struct {
	Name      string
	HP        int
	Attack    int
	Defense   int
	SpAttack  int
	SpDefense int
	Speed     int
	Type1     string
	Type2     string

	// Against maps an attacking move type to the damage
	// multiplier it has against this Pokemon
	Against map[string]float64
}

// Effectiveness returns the damage multiplier of moveType against p,
// defaulting to 1.0 if the matchup is unknown
func (p Pokemon) Effectiveness(moveType string) float64 {
	if mult, ok := p.Against[strings.ToLower(moveType)]; ok {
		return mult
	}

	return 1.0
}

// Dict returns the wire form of p, the snapshot exchanged
// in BATTLE_SETUP
func (p Pokemon) Dict() *Dict {
	raw := NewDict()
	for _, t := range sortedKeys(p.Against) {
		raw.Set("against_"+t, p.Against[t])
	}

	d := NewDict()
	d.Set("name", p.Name)
	d.Set("hp", p.HP)
	d.Set("attack", p.Attack)
	d.Set("defense", p.Defense)
	d.Set("sp_attack", p.SpAttack)
	d.Set("sp_defense", p.SpDefense)
	d.Set("speed", p.Speed)
	d.Set("type1", p.Type1)
	d.Set("type2", p.Type2)
	d.Set("raw_row", raw)

	return d
}

// DefaultPokemon is the documented fallback record for unknown
// names: 100 HP, 50 in every stat, normal type, no matchups
func DefaultPokemon(name string) Pokemon {
	return Pokemon{
		Name:      name,
		HP:        100,
		Attack:    50,
		Defense:   50,
		SpAttack:  50,
		SpDefense: 50,
		Speed:     50,
		Type1:     "normal",
	}
}

// PokemonFromDict decodes a peer-sent snapshot.
// It is a schema check, not an evaluator: unknown top-level keys
// and non-scalar matchup values are rejected.
func PokemonFromDict(d *Dict) (Pokemon, error) {
	p := DefaultPokemon("")

	for _, k := range d.Keys() {
		v, _ := d.Get(k)

		switch k {
		case "name":
			s, ok := v.(string)
			if !ok {
				return Pokemon{}, fmt.Errorf("snapshot field %q: %w", k, ErrBadLiteral)
			}
			p.Name = s
		case "type1", "type2":
			s, ok := v.(string)
			if !ok {
				return Pokemon{}, fmt.Errorf("snapshot field %q: %w", k, ErrBadLiteral)
			}
			if k == "type1" {
				p.Type1 = s
			} else {
				p.Type2 = s
			}
		case "hp", "attack", "defense", "sp_attack", "sp_defense", "speed":
			n, ok := toInt(v)
			if !ok {
				return Pokemon{}, fmt.Errorf("snapshot field %q: %w", k, ErrBadLiteral)
			}
			switch k {
			case "hp":
				p.HP = n
			case "attack":
				p.Attack = n
			case "defense":
				p.Defense = n
			case "sp_attack":
				p.SpAttack = n
			case "sp_defense":
				p.SpDefense = n
			case "speed":
				p.Speed = n
			}
		case "raw_row":
			raw, ok := v.(*Dict)
			if !ok {
				return Pokemon{}, fmt.Errorf("snapshot field %q: %w", k, ErrBadLiteral)
			}

			p.Against = make(map[string]float64)
			for _, rk := range raw.Keys() {
				rv, _ := raw.Get(rk)
				if !isScalar(rv) {
					return Pokemon{}, fmt.Errorf("snapshot matchup %q: %w", rk, ErrBadLiteral)
				}
				if t, ok := strings.CutPrefix(rk, "against_"); ok {
					if f, ok := toFloat(rv); ok {
						p.Against[strings.ToLower(t)] = f
					}
				}
			}
		default:
			return Pokemon{}, fmt.Errorf("unexpected snapshot field %q: %w", k, ErrBadLiteral)
		}
	}

	if p.Name == "" {
		return Pokemon{}, fmt.Errorf("snapshot without name: %w", ErrBadLiteral)
	}

	return p, nil
}

// A StatSource provides Pokemon records by name
type StatSource interface {
	// Pokemon looks up name case-insensitively
	Pokemon(name string) (Pokemon, bool)
}

// A Pokedex is an in-memory StatSource keyed by lowercase name
type Pokedex map[string]Pokemon

// Pokemon implements StatSource
func (d Pokedex) Pokemon(name string) (Pokemon, bool) {
	p, ok := d[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// LoadPokedex reads the stat table from a CSV file with per-type
// against_X matchup columns. Rows without a name are skipped.
func LoadPokedex(path string) (Pokedex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("%s: no header row", path)
	}

	header := records[0]
	// Excel likes to prepend a BOM.
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	col := make(map[string]int)
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}

	cell := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	dex := make(Pokedex)
	for _, row := range records[1:] {
		name := cell(row, "name")
		if name == "" {
			name = cell(row, "japanese_name")
		}
		if name == "" {
			continue
		}

		p := Pokemon{
			Name:      name,
			HP:        atoi(cell(row, "hp")),
			Attack:    atoi(cell(row, "attack")),
			Defense:   atoi(cell(row, "defense")),
			SpAttack:  atoi(cell(row, "sp_attack")),
			SpDefense: atoi(cell(row, "sp_defense")),
			Speed:     atoi(cell(row, "speed")),
			Type1:     strings.ToLower(cell(row, "type1")),
			Type2:     strings.ToLower(cell(row, "type2")),
			Against:   make(map[string]float64),
		}

		for h, i := range col {
			t, ok := strings.CutPrefix(h, "against_")
			if !ok || i >= len(row) {
				continue
			}
			if f, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64); err == nil {
				p.Against[t] = f
			}
		}

		dex[strings.ToLower(name)] = p
	}

	return dex, nil
}

// A Move is one attack's static data
type Move struct {
	Name     string
	Power    int
	Category string // "physical" or "special"
	Type     string
}

// A MoveSet maps lowercase move names to their data
type MoveSet map[string]Move

// StandardMoves returns the built-in move table
func StandardMoves() MoveSet {
	return MoveSet{
		"tackle":       {Name: "tackle", Power: 40, Category: "physical", Type: "normal"},
		"scratch":      {Name: "scratch", Power: 40, Category: "physical", Type: "normal"},
		"thunderbolt":  {Name: "thunderbolt", Power: 90, Category: "special", Type: "electric"},
		"flamethrower": {Name: "flamethrower", Power: 90, Category: "special", Type: "fire"},
		"hydro pump":   {Name: "hydro pump", Power: 110, Category: "special", Type: "water"},
		"vine whip":    {Name: "vine whip", Power: 45, Category: "physical", Type: "grass"},
		"earthquake":   {Name: "earthquake", Power: 100, Category: "physical", Type: "ground"},
		"psychic":      {Name: "psychic", Power: 90, Category: "special", Type: "psychic"},
	}
}

// Lookup returns the move data for name, or a 50-power physical
// normal move if name is unknown
func (ms MoveSet) Lookup(name string) Move {
	if mv, ok := ms[strings.ToLower(strings.TrimSpace(name))]; ok {
		return mv
	}

	return Move{Name: name, Power: 50, Category: "physical", Type: "normal"}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}

	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}

	return 0, false
}

func isScalar(v interface{}) bool {
	switch v.(type) {
	case string, int, int64, float64, bool, nil:
		return true
	}

	return false
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
