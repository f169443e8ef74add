package publishers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Publishers []Config `json:"publishers" yaml:"publishers" toml:"publishers"`
}

// Catalog is the validated, immutable set of sinks declared in the
// publishers file.
type Catalog struct {
	entries []Config
	byID    map[string]int
}

// LoadCatalog reads a YAML, JSON or TOML publishers file. ${VAR} references are
// expanded from the environment before parsing so secrets can stay out of
// the file.
func LoadCatalog(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("publishers file path is empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publishers file: %w", err)
	}
	return ParseCatalog(raw, filepath.Ext(path))
}

// ParseCatalog decodes raw in the format named by ext (".yaml", ".yml",
// ".json" or ".toml"). Unknown keys are rejected.
func ParseCatalog(raw []byte, ext string) (*Catalog, error) {
	expanded := []byte(os.ExpandEnv(string(raw)))

	var file catalogFile
	switch strings.ToLower(ext) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(expanded))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&file); err != nil {
			return nil, fmt.Errorf("parse publishers json: %w", err)
		}
	case ".yaml", ".yml", "":
		dec := yaml.NewDecoder(bytes.NewReader(expanded))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse publishers yaml: %w", err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(expanded))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&file); err != nil {
			return nil, fmt.Errorf("parse publishers toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported publishers file extension %q", ext)
	}

	if len(file.Publishers) == 0 {
		return nil, errors.New("publishers file contains no publishers entries")
	}

	cat := &Catalog{
		entries: make([]Config, 0, len(file.Publishers)),
		byID:    make(map[string]int, len(file.Publishers)),
	}
	for i, cfg := range file.Publishers {
		cfg.normalize()
		if err := cfg.validate(); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if _, dup := cat.byID[cfg.ID]; dup {
			return nil, fmt.Errorf("duplicate publisher id %q", cfg.ID)
		}
		cat.byID[cfg.ID] = len(cat.entries)
		cat.entries = append(cat.entries, cfg)
	}
	return cat, nil
}

// Lookup returns the entry with the given id.
func (c *Catalog) Lookup(id string) (Config, bool) {
	if c == nil {
		return Config{}, false
	}
	i, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return Config{}, false
	}
	return c.entries[i], true
}

// Entries returns every declared sink in file order.
func (c *Catalog) Entries() []Config {
	if c == nil {
		return nil
	}
	return append([]Config(nil), c.entries...)
}

// Enabled returns the sinks that should receive snapshots.
func (c *Catalog) Enabled() []Config {
	if c == nil {
		return nil
	}
	var out []Config
	for _, cfg := range c.entries {
		if cfg.IsEnabled() {
			out = append(out, cfg)
		}
	}
	return out
}
