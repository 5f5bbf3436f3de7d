package pokebattle

import (
	"os"
	"path/filepath"
	"testing"
)

const testCSV = "\ufeffname,hp,attack,defense,sp_attack,sp_defense,speed,type1,type2,against_fire,against_water,japanese_name\n" +
	"Pikachu,35,55,40,50,50,90,Electric,,1.0,1.0,ピカチュウ\n" +
	"Squirtle,44,48,65,50,64,43,Water,,0.5,0.5,ゼニガメ\n" +
	",1,1,1,1,1,1,normal,,,,\n" +
	"Gyarados,95,125,79,60,100,81,Water,Flying,0.5,0.5,ギャラドス\n"

func writeTestCSV(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "pokemon_data.csv")
	if err := os.WriteFile(path, []byte(testCSV), 0644); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestLoadPokedex(t *testing.T) {
	dex, err := LoadPokedex(writeTestCSV(t))
	if err != nil {
		t.Fatal(err)
	}

	// The nameless row is skipped.
	if len(dex) != 3 {
		t.Fatalf("loaded %d records, want 3", len(dex))
	}

	p, ok := dex.Pokemon("  PIKACHU ")
	if !ok {
		t.Fatal("lookup is not case-insensitive")
	}
	if p.HP != 35 || p.Speed != 90 || p.Type1 != "electric" {
		t.Fatalf("bad record: %+v", p)
	}
	if p.Effectiveness("fire") != 1.0 {
		t.Fatal("matchup column lost")
	}

	g, _ := dex.Pokemon("gyarados")
	if g.Type2 != "flying" || g.Effectiveness("water") != 0.5 {
		t.Fatalf("bad record: %+v", g)
	}

	if _, ok := dex.Pokemon("missingno"); ok {
		t.Fatal("unknown name resolved")
	}
}

func TestMoveSetLookup(t *testing.T) {
	ms := StandardMoves()

	if mv := ms.Lookup(" Thunderbolt "); mv.Power != 90 || mv.Category != "special" {
		t.Fatalf("bad move: %+v", mv)
	}

	// Unknown moves degrade to a generic physical hit.
	mv := ms.Lookup("splash")
	if mv.Power != 50 || mv.Category != "physical" || mv.Type != "normal" {
		t.Fatalf("bad fallback: %+v", mv)
	}
}

func TestStatDBRoundTrip(t *testing.T) {
	db, err := OpenSQLite3(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	dex, err := LoadPokedex(writeTestCSV(t))
	if err != nil {
		t.Fatal(err)
	}

	if err := db.Import(dex); err != nil {
		t.Fatal(err)
	}
	// A second import replaces rather than duplicates.
	if err := db.Import(dex); err != nil {
		t.Fatal(err)
	}

	p, ok := db.Pokemon("Squirtle")
	if !ok {
		t.Fatal("imported record not found")
	}
	if p.Name != "Squirtle" || p.HP != 44 || p.SpDefense != 64 {
		t.Fatalf("bad record: %+v", p)
	}
	if p.Effectiveness("fire") != 0.5 {
		t.Fatal("matchup rows lost")
	}
	if p.Effectiveness("normal") != 1.0 {
		t.Fatal("unknown matchup should default to 1.0")
	}

	if _, ok := db.Pokemon("missingno"); ok {
		t.Fatal("unknown name resolved")
	}
}
