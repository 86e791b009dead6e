package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jask/recordboard/internal/config"
)

const viewsFile = "views.json"

// ErrNoName is returned when saving a view without a name.
var ErrNoName = errors.New("view name required")

// View is a saved records filter.
type View struct {
	Name         string `json:"name"`
	Timeframe    string `json:"timeframe,omitempty"`
	CollectionID string `json:"collection_id,omitempty"`
	CategoryID   string `json:"category_id,omitempty"`
	Tag          string `json:"tag,omitempty"`
	Search       string `json:"search,omitempty"`
}

// Store reads and writes saved views in one JSON file.
type Store struct {
	Path string
}

// DefaultStore keeps views next to the config file.
func DefaultStore() *Store {
	return &Store{Path: filepath.Join(config.Dir(), viewsFile)}
}

// Load returns saved views. A missing file yields none.
func (s *Store) Load() ([]View, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var views []View
	if err := json.Unmarshal(data, &views); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	return views, nil
}

// Save replaces the file atomically.
func (s *Store) Save(views []View) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	if views == nil {
		views = []View{}
	}
	data, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path)
}

// Upsert adds v, replacing a view of the same name (case-insensitive).
func (s *Store) Upsert(v View) ([]View, error) {
	v.Name = strings.TrimSpace(v.Name)
	if v.Name == "" {
		return nil, ErrNoName
	}
	views, err := s.Load()
	if err != nil {
		return nil, err
	}
	replaced := false
	for i := range views {
		if strings.EqualFold(views[i].Name, v.Name) {
			views[i] = v
			replaced = true
			break
		}
	}
	if !replaced {
		views = append(views, v)
	}
	return views, s.Save(views)
}

// Delete removes the named view. Deleting an unknown name is a no-op.
func (s *Store) Delete(name string) ([]View, error) {
	views, err := s.Load()
	if err != nil {
		return nil, err
	}
	out := views[:0]
	for _, v := range views {
		if !strings.EqualFold(v.Name, strings.TrimSpace(name)) {
			out = append(out, v)
		}
	}
	return out, s.Save(out)
}
