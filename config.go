package pokebattle

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// ErrUnknownDriver is returned for database drivers the config
// doesn't know about
var ErrUnknownDriver = errors.New("unknown database driver")

// DefaultConfigPath is where LoadConfig looks when no path is given
const DefaultConfigPath = "config/pokebattle.yml"

// A Config holds everything a node needs to start a session.
// It is constructed once and passed by reference; there is no
// ambient global configuration.
type Config struct {
	Name    string `yaml:"name"`
	Role    string `yaml:"role"`
	Bind    string `yaml:"bind"`
	Peer    string `yaml:"peer"`
	Pokemon string `yaml:"pokemon"`

	PokemonCSV string `yaml:"pokemon_csv"`

	Database struct {
		Driver   string `yaml:"driver"` // "", "sqlite3" or "postgres"
		Name     string `yaml:"name"`
		Host     string `yaml:"host"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Port     uint16 `yaml:"port"`
	} `yaml:"database"`

	RetransmitTimeoutMs int  `yaml:"retransmit_timeout_ms"`
	MaxRetries          int  `yaml:"max_retries"`
	Verbose             bool `yaml:"verbose"`
}

// DefaultConfig returns the configuration used when no file and no
// flags override it
func DefaultConfig() *Config {
	c := &Config{
		Name:                "Player1",
		Role:                string(RoleHost),
		Bind:                "0.0.0.0:9999",
		PokemonCSV:          "pokemon_data.csv",
		RetransmitTimeoutMs: int(RetransmitTimeout / time.Millisecond),
		MaxRetries:          MaxRetries,
	}
	c.Database.Name = "pokedex.sqlite"
	c.Database.Host = "localhost"
	c.Database.Port = 5432

	return c
}

// LoadConfig reads the configuration file at path, falling back to
// defaults for everything the file leaves unset.
// A missing file is not an error when path is the default location.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()

	usingDefault := path == ""
	if usingDefault {
		path = DefaultConfigPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && usingDefault {
			return c, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}

	return c, nil
}

// RetransmitTimeoutDuration returns the configured retransmission
// timeout as a time.Duration
func (c *Config) RetransmitTimeoutDuration() time.Duration {
	if c.RetransmitTimeoutMs <= 0 {
		return RetransmitTimeout
	}

	return time.Duration(c.RetransmitTimeoutMs) * time.Millisecond
}

// OpenStatSource builds the stat source the config asks for:
// a plain CSV Pokedex or a SQL database seeded from the CSV
func (c *Config) OpenStatSource() (StatSource, error) {
	dex, err := LoadPokedex(c.PokemonCSV)
	if err != nil {
		return nil, err
	}

	switch c.Database.Driver {
	case "", "none":
		return dex, nil
	case "sqlite3":
		db, err := OpenSQLite3(c.Database.Name)
		if err != nil {
			return nil, err
		}
		if err := db.Import(dex); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := OpenPSQL(c.Database.Host, c.Database.Name,
			c.Database.User, c.Database.Password, c.Database.Port)
		if err != nil {
			return nil, err
		}
		if err := db.Import(dex); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	default:
		return nil, ErrUnknownDriver
	}
}
