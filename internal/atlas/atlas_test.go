package atlas

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsWhenNoFile(t *testing.T) {
	s := NewService(t.TempDir())
	cats := s.List()
	if len(cats) != len(Defaults()) {
		t.Fatalf("categories = %d, want defaults", len(cats))
	}
	if _, ok := s.Get("lake"); !ok {
		t.Fatalf("expected default lake category")
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	config := `categories:
  - id: brewery
    name: Breweries
    emoji: B
    color: "#aa7722"
  - id: trail
    name: Trails
    emoji: T
`
	if err := os.WriteFile(filepath.Join(dir, "atlas.yaml"), []byte(config), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewService(dir)
	cats := s.List()
	if len(cats) != 2 {
		t.Fatalf("categories = %d, want 2", len(cats))
	}
	c, ok := s.Get("brewery")
	if !ok || c.Name != "Breweries" {
		t.Fatalf("brewery category = %+v", c)
	}
	if trail, _ := s.Get("trail"); trail.Color == "" {
		t.Fatalf("missing color should get a default")
	}
}

func TestInvalidYAMLFallsBack(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "atlas.yaml"), []byte(":::"), 0644); err != nil {
		t.Fatal(err)
	}
	s := NewService(dir)
	if len(s.List()) != len(Defaults()) {
		t.Fatalf("invalid config should fall back to defaults")
	}
}

func TestCategoryLayerStyle(t *testing.T) {
	c := Category{ID: "lake", Emoji: "L", Color: "#2266cc"}
	st := c.LayerStyle()
	if st.Color != "#2266cc" || st.IconID != "atlas-icon-lake" || st.Icon == nil {
		t.Fatalf("style = %+v", st)
	}
	if c.SourceID() != "atlas-lake" {
		t.Fatalf("source id = %q", c.SourceID())
	}
}
