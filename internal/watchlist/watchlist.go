// Package watchlist reads the trader addresses to collect from a YAML file.
//
// The file holds a single "traders" list whose items are either bare
// addresses or mappings with an address and an optional label:
//
//	traders:
//	  - 0x56687bf447db6ffa42ffe2204a05edaa20f55839
//	  - address: 0x1f2dd6d473f3e824cd2f8a89d9c69fb96f6ad0cf
//	    label: whale
package watchlist

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one watched trader.
type Entry struct {
	Address string `yaml:"address"`
	Label   string `yaml:"label,omitempty"`
}

// UnmarshalYAML accepts a bare address scalar as well as a mapping.
func (e *Entry) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		e.Address = n.Value
		return nil
	}
	type plain Entry
	var p plain
	if err := n.Decode(&p); err != nil {
		return err
	}
	*e = Entry(p)
	return nil
}

// File is the decoded watchlist document.
type File struct {
	Traders []Entry `yaml:"traders"`
}

// Addresses returns the trimmed, non-empty addresses in file order with
// exact duplicates removed.
func (f File) Addresses() []string {
	seen := make(map[string]bool, len(f.Traders))
	out := make([]string, 0, len(f.Traders))
	for _, e := range f.Traders {
		addr := strings.TrimSpace(e.Address)
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, addr)
	}
	return out
}

// Parse decodes a watchlist document.
func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("watchlist: decode: %w", err)
	}
	return f, nil
}

// Load reads and decodes the watchlist at path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("watchlist: read %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return File{}, fmt.Errorf("watchlist: %s: %w", path, err)
	}
	return f, nil
}

// FileWatchlist re-reads its file on every call, so edits take effect on
// the next collection cycle.
type FileWatchlist struct {
	path string
}

// NewFileWatchlist creates a FileWatchlist for path.
func NewFileWatchlist(path string) *FileWatchlist {
	return &FileWatchlist{path: path}
}

// Addresses implements pipeline.Watchlist.
func (w *FileWatchlist) Addresses(_ context.Context) ([]string, error) {
	f, err := Load(w.path)
	if err != nil {
		return nil, err
	}
	return f.Addresses(), nil
}

// Static is a fixed in-memory watchlist.
type Static []string

// Addresses implements pipeline.Watchlist.
func (s Static) Addresses(_ context.Context) ([]string, error) {
	return File{Traders: entries(s)}.Addresses(), nil
}

func entries(addrs []string) []Entry {
	out := make([]Entry, len(addrs))
	for i, a := range addrs {
		out[i] = Entry{Address: a}
	}
	return out
}
