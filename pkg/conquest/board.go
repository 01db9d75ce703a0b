package conquest

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed boards/*.yaml
var boardFS embed.FS

// Board is a static map definition: territories, continents, rules and the card catalog.
type Board struct {
	Name        string           `yaml:"name"`
	Rules       Rules            `yaml:"rules"`
	Continents  []Continent      `yaml:"continents"`
	Territories []BoardTerritory `yaml:"territories"`
	Cards       []CardTemplate   `yaml:"cards"`
}

// BoardTerritory is the static definition of one territory.
type BoardTerritory struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Continent   string        `yaml:"continent"`
	Type        TerritoryType `yaml:"type"`
	Connections []string      `yaml:"connections"`
}

// ErrInvalidBoard is returned by Validate for inconsistent board definitions.
var ErrInvalidBoard = errors.New("invalid board")

// LoadBoard parses and validates a YAML board definition. Rules missing
// from the file fall back to DefaultRules.
func LoadBoard(r io.Reader) (*Board, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read board: %w", err)
	}
	b := &Board{Rules: DefaultRules()}
	if err := yaml.Unmarshal(raw, b); err != nil {
		return nil, fmt.Errorf("board yaml: %w", err)
	}
	b.indexContinents()
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// DefaultBoard returns the embedded standard board.
func DefaultBoard() *Board {
	raw, err := boardFS.ReadFile("boards/standard.yaml")
	if err != nil {
		panic(fmt.Sprintf("embedded board: %v", err))
	}
	b, err := LoadBoard(bytes.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("embedded board: %v", err))
	}
	return b
}

// indexContinents fills each continent's territory list from territory membership.
func (b *Board) indexContinents() {
	for i := range b.Continents {
		c := &b.Continents[i]
		for _, t := range b.Territories {
			if t.Continent == c.ID && !slices.Contains(c.Territories, t.ID) {
				c.Territories = append(c.Territories, t.ID)
			}
		}
	}
}

// Validate checks ids are unique, connections are symmetric and every
// continent and card reference resolves.
func (b *Board) Validate() error {
	byID := make(map[string]BoardTerritory, len(b.Territories))
	land := 0
	for _, t := range b.Territories {
		if t.ID == "" {
			return fmt.Errorf("%w: territory without id", ErrInvalidBoard)
		}
		if _, dup := byID[t.ID]; dup {
			return fmt.Errorf("%w: duplicate territory %q", ErrInvalidBoard, t.ID)
		}
		switch t.Type {
		case Land:
			land++
		case Water:
		default:
			return fmt.Errorf("%w: territory %q has type %q", ErrInvalidBoard, t.ID, t.Type)
		}
		byID[t.ID] = t
	}
	if land == 0 {
		return fmt.Errorf("%w: no land territories", ErrInvalidBoard)
	}
	for _, t := range b.Territories {
		for _, n := range t.Connections {
			other, ok := byID[n]
			if !ok {
				return fmt.Errorf("%w: %s connects to unknown %q", ErrInvalidBoard, t.ID, n)
			}
			if !slices.Contains(other.Connections, t.ID) {
				return fmt.Errorf("%w: %s -> %s is one-way", ErrInvalidBoard, t.ID, n)
			}
		}
		if t.Continent != "" && !slices.ContainsFunc(b.Continents, func(c Continent) bool { return c.ID == t.Continent }) {
			return fmt.Errorf("%w: %s in unknown continent %q", ErrInvalidBoard, t.ID, t.Continent)
		}
	}
	for _, c := range b.Continents {
		for _, id := range c.Territories {
			if _, ok := byID[id]; !ok {
				return fmt.Errorf("%w: continent %s lists unknown %q", ErrInvalidBoard, c.ID, id)
			}
		}
	}
	seen := make(map[string]bool, len(b.Cards))
	for _, c := range b.Cards {
		if c.Key == "" || seen[c.Key] {
			return fmt.Errorf("%w: card key %q missing or duplicated", ErrInvalidBoard, c.Key)
		}
		seen[c.Key] = true
		if !c.CommanderType.Valid() {
			return fmt.Errorf("%w: card %s has commander %q", ErrInvalidBoard, c.Key, c.CommanderType)
		}
		if c.Cost < 0 {
			return fmt.Errorf("%w: card %s has negative cost", ErrInvalidBoard, c.Key)
		}
	}
	return nil
}

// LandIDs returns the ids of land territories in file order.
func (b *Board) LandIDs() []string {
	var out []string
	for _, t := range b.Territories {
		if t.Type == Land {
			out = append(out, t.ID)
		}
	}
	return out
}
