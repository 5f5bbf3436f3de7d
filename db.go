package pokebattle

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const statSchema = `
CREATE TABLE IF NOT EXISTS pokemon (
	key VARCHAR(128) PRIMARY KEY,
	name VARCHAR(128) NOT NULL,
	hp INTEGER NOT NULL,
	attack INTEGER NOT NULL,
	defense INTEGER NOT NULL,
	sp_attack INTEGER NOT NULL,
	sp_defense INTEGER NOT NULL,
	speed INTEGER NOT NULL,
	type1 VARCHAR(32) NOT NULL,
	type2 VARCHAR(32) NOT NULL
);
CREATE TABLE IF NOT EXISTS matchups (
	key VARCHAR(128) NOT NULL,
	move_type VARCHAR(32) NOT NULL,
	multiplier REAL NOT NULL,
	PRIMARY KEY (key, move_type)
);
`

// A StatDB is a StatSource backed by a SQL database
type StatDB struct {
	*sql.DB
	driver string
}

// OpenSQLite3 opens (and initializes) the stat database under the
// storage directory
func OpenSQLite3(name string) (*StatDB, error) {
	path := name
	if name != ":memory:" {
		os.Mkdir("storage", 0775)
		path = "storage/" + name
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	s := &StatDB{DB: db, driver: "sqlite3"}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// OpenPSQL opens (and initializes) the stat database on a
// PostgreSQL server
func OpenPSQL(host, name, user, password string, port uint16) (*StatDB, error) {
	psqlconn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, name)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &StatDB{DB: db, driver: "postgres"}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *StatDB) init() error {
	_, err := s.Exec(statSchema)
	return err
}

// rebind rewrites ? placeholders into the $n form pq expects
func (s *StatDB) rebind(q string) string {
	if s.driver != "postgres" {
		return q
	}

	var b strings.Builder
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
		} else {
			b.WriteByte(q[i])
		}
	}

	return b.String()
}

// Import stores every record of dex, replacing existing rows
func (s *StatDB) Import(dex Pokedex) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for key, p := range dex {
		if _, err := tx.Exec(s.rebind(`DELETE FROM pokemon WHERE key = ?;`), key); err != nil {
			return err
		}
		if _, err := tx.Exec(s.rebind(`DELETE FROM matchups WHERE key = ?;`), key); err != nil {
			return err
		}

		_, err := tx.Exec(s.rebind(`INSERT INTO pokemon (
			key, name, hp, attack, defense, sp_attack, sp_defense, speed, type1, type2
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`),
			key, p.Name, p.HP, p.Attack, p.Defense,
			p.SpAttack, p.SpDefense, p.Speed, p.Type1, p.Type2)
		if err != nil {
			return err
		}

		for t, mult := range p.Against {
			_, err := tx.Exec(s.rebind(`INSERT INTO matchups (
				key, move_type, multiplier
			) VALUES (?, ?, ?);`), key, t, mult)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// Pokemon implements StatSource
func (s *StatDB) Pokemon(name string) (Pokemon, bool) {
	key := strings.ToLower(strings.TrimSpace(name))

	var p Pokemon
	err := s.QueryRow(s.rebind(`SELECT name, hp, attack, defense,
		sp_attack, sp_defense, speed, type1, type2
		FROM pokemon WHERE key = ?;`), key).
		Scan(&p.Name, &p.HP, &p.Attack, &p.Defense,
			&p.SpAttack, &p.SpDefense, &p.Speed, &p.Type1, &p.Type2)
	if err == sql.ErrNoRows {
		return Pokemon{}, false
	} else if err != nil {
		log.Print("stat query: ", err)
		return Pokemon{}, false
	}

	p.Against = make(map[string]float64)

	rows, err := s.Query(s.rebind(`SELECT move_type, multiplier
		FROM matchups WHERE key = ?;`), key)
	if err != nil {
		log.Print("matchup query: ", err)
		return p, true
	}
	defer rows.Close()

	for rows.Next() {
		var t string
		var mult float64
		if err := rows.Scan(&t, &mult); err != nil {
			log.Print("matchup scan: ", err)
			continue
		}
		p.Against[t] = mult
	}

	return p, true
}
