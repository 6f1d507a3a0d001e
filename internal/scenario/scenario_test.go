package scenario

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadParsesObjectsAndComponents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	content := `
objects:
  - name: alice
    components:
      - kind: Person
        args:
          fullName: Alice Smith
      - kind: Job
        args:
          title: Engineer
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.Objects) != 1 {
		t.Fatalf("len(Objects) = %d, want 1", len(s.Objects))
	}
	obj := s.Objects[0]
	if obj.Name != "alice" {
		t.Errorf("Name = %q, want alice", obj.Name)
	}
	if len(obj.Components) != 2 {
		t.Fatalf("len(Components) = %d, want 2", len(obj.Components))
	}
	if obj.Components[0].Kind != "Person" {
		t.Errorf("Components[0].Kind = %q, want Person", obj.Components[0].Kind)
	}
	if obj.Components[0].Args["fullName"] != "Alice Smith" {
		t.Errorf("fullName arg = %v, want Alice Smith", obj.Components[0].Args["fullName"])
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing scenario file")
	}
}
