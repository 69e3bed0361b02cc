package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Project is one tracked DeFi project and the token symbol its market data is keyed by
type Project struct {
	Name   string `toml:"name" json:"name"`
	Symbol string `toml:"symbol" json:"symbol"`
}

// Catalog is the ordered list of projects shown on the dashboard
type Catalog struct {
	Projects []Project `toml:"projects"`
}

// DefaultCatalog returns the built-in Sonic project list
func DefaultCatalog() *Catalog {
	return &Catalog{Projects: []Project{
		{Name: "Solv Protocol", Symbol: "SOLVBTC"},
		{Name: "Hey Anon", Symbol: "ANON"},
		{Name: "Wagmi", Symbol: "WAGMI"},
		{Name: "Yel Finance", Symbol: "YEL"},
		{Name: "Silo Finance", Symbol: "SILO"},
		{Name: "Beets", Symbol: "BEETS"},
		{Name: "Shadow", Symbol: "SHADOW"},
		{Name: "Eggs Finance", Symbol: "EGGS"},
		{Name: "Equalizer Exchange", Symbol: "EQUAL"},
	}}
}

// LoadCatalog reads a TOML catalog from path. An empty path yields the default catalog.
//
//	[[projects]]
//	name = "Beets"
//	symbol = "BEETS"
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	var catalog Catalog
	if err := toml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	for i, p := range catalog.Projects {
		if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Symbol) == "" {
			return nil, fmt.Errorf("catalog entry %d needs both name and symbol", i)
		}
	}
	return &catalog, nil
}

// Lookup finds a project by case-insensitive name
func (c *Catalog) Lookup(name string) (Project, bool) {
	for _, p := range c.Projects {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Project{}, false
}

// SymbolFor returns the token symbol for a project name, if tracked
func (c *Catalog) SymbolFor(name string) string {
	if p, ok := c.Lookup(name); ok {
		return p.Symbol
	}
	return ""
}
