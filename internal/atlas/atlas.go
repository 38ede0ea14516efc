// Package atlas manages the atlas category registry: the fixed set of
// civic/geographic groupings (cities, townships, lakes, parks) each rendered
// as its own logical map layer.
package atlas

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/loveofminnesota/pinmap/internal/maplayer"
)

// Category is one atlas grouping. Each category owns one map layer whose
// source id is "atlas-" + ID.
type Category struct {
	ID    string `yaml:"id" json:"id" doc:"Category identifier" example:"lake"`
	Name  string `yaml:"name" json:"name" doc:"Display name" example:"Lakes"`
	Emoji string `yaml:"emoji" json:"emoji" doc:"Icon glyph" example:"water"`
	Color string `yaml:"color" json:"color" doc:"Marker color (CSS)" example:"#2266cc"`
}

// SourceID returns the engine source name for the category's layer.
func (c Category) SourceID() string { return "atlas-" + c.ID }

// LayerStyle returns the rendering style for the category's layer.
func (c Category) LayerStyle() maplayer.Style {
	return maplayer.Style{
		Color:      c.Color,
		LabelField: "description",
		IconID:     "atlas-icon-" + c.ID,
		Icon:       maplayer.EmojiIcon{Glyph: c.Emoji},
	}
}

// Defaults are the built-in categories used when no config file exists.
func Defaults() []Category {
	return []Category{
		{ID: "city", Name: "Cities", Emoji: "C", Color: "#e05c4b"},
		{ID: "township", Name: "Townships", Emoji: "T", Color: "#c98d2a"},
		{ID: "lake", Name: "Lakes", Emoji: "L", Color: "#2266cc"},
		{ID: "park", Name: "Parks", Emoji: "P", Color: "#2c8a4b"},
	}
}

// Service loads and serves categories from <dataDir>/atlas.yaml, falling
// back to Defaults when the file is absent or unreadable.
type Service struct {
	path string

	mu         sync.RWMutex
	categories []Category
}

// NewService creates the service and loads the config once.
func NewService(dataDir string) *Service {
	s := &Service{path: filepath.Join(dataDir, "atlas.yaml")}
	s.categories = s.load()
	return s
}

// List returns all categories.
func (s *Service) List() []Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Category, len(s.categories))
	copy(out, s.categories)
	return out
}

// Get returns a category by id.
func (s *Service) Get(id string) (Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

func (s *Service) load() []Category {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Defaults()
	}
	var file struct {
		Categories []Category `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil || len(file.Categories) == 0 {
		return Defaults()
	}
	for i, c := range file.Categories {
		if c.ID == "" {
			// Reject the whole file rather than serving half a registry.
			return Defaults()
		}
		if c.Color == "" {
			file.Categories[i].Color = "#3388ff"
		}
	}
	return file.Categories
}

// Save writes the registry back to disk, mostly for seeding new data dirs.
func (s *Service) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := yaml.Marshal(struct {
		Categories []Category `yaml:"categories"`
	}{Categories: s.categories})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return os.WriteFile(s.path, data, 0644)
}
