package pipeline

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestParse(t *testing.T) {
	data := []byte(`
- stage: build
  script: make
- stage: test
  script: |
    make test
    make lint
`)

	p, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}

	want := []Stage{
		{Name: "build", Script: "make"},
		{Name: "test", Script: "make test\nmake lint\n"},
	}
	if !slices.Equal(p.Stages, want) {
		t.Fatalf("stages = %+v, want %+v", p.Stages, want)
	}
}

func TestParseSkipsEntriesWithoutStage(t *testing.T) {
	data := []byte(`
- stage: lint
  script: golangci-lint run
- stage:
  script: echo disabled
- script: echo anchor only
- stage: test
  script: go test ./...
`)

	p, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}

	if got := p.Names(); !slices.Equal(got, []string{"lint", "test"}) {
		t.Fatalf("Names() = %q", got)
	}
}

func TestParseKeepsEmptyStageName(t *testing.T) {
	p, err := Parse([]byte("- stage: ''\n  script: make\n- stage: test\n  script: make test\n"))
	if err != nil {
		t.Fatal(err)
	}

	want := []Stage{
		{Name: "", Script: "make"},
		{Name: "test", Script: "make test"},
	}
	if !slices.Equal(p.Stages, want) {
		t.Fatalf("stages = %+v, want %+v", p.Stages, want)
	}
}

func TestParseEmptySequence(t *testing.T) {
	p, err := Parse([]byte("[]"))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Stages) != 0 {
		t.Fatalf("stages = %+v, want none", p.Stages)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty document", ""},
		{"mapping at top level", "stage: build\nscript: make\n"},
		{"scalar at top level", "make"},
		{"entry is not a mapping", "- make\n"},
		{"missing script", "- stage: build\n"},
		{"null script", "- stage: build\n  script:\n"},
		{"numeric script", "- stage: build\n  script: 42\n"},
		{"numeric stage", "- stage: 1\n  script: make\n"},
		{"malformed yaml", "- stage: [build\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if !errors.Is(err, ErrDefinition) {
				t.Fatalf("Parse() error = %v, want ErrDefinition", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	if err := os.WriteFile(path, []byte("- stage: build\n  script: make\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Names(); !slices.Equal(got, []string{"build"}) {
		t.Fatalf("Names() = %q", got)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), DefaultFile))
	if !errors.Is(err, ErrDefinition) || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Load() error = %v, want ErrDefinition and fs.ErrNotExist", err)
	}
}

func TestLoadInvalidNamesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	if err := os.WriteFile(path, []byte("- stage: build\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if !errors.Is(err, ErrDefinition) {
		t.Fatalf("Load() error = %v, want ErrDefinition", err)
	}
	if got := err.Error(); len(got) < len(path) || got[:len(path)] != path {
		t.Fatalf("error %q does not start with the file path", got)
	}
}

func TestSelect(t *testing.T) {
	p := &Pipeline{Stages: []Stage{
		{Name: "build", Script: "make"},
		{Name: "test", Script: "make test"},
		{Name: "lint", Script: "make lint"},
		{Name: "test", Script: "make e2e"},
	}}

	tests := []struct {
		name  string
		names []string
		want  []string
	}{
		{"none selects all", nil, []string{"build", "test", "lint", "test"}},
		{"file order kept", []string{"lint", "build"}, []string{"build", "lint"}},
		{"duplicates kept", []string{"test"}, []string{"test", "test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Select(tt.names...)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(got.Names(), tt.want) {
				t.Fatalf("Select(%q).Names() = %q, want %q", tt.names, got.Names(), tt.want)
			}
		})
	}
}

func TestSelectUnknown(t *testing.T) {
	p := &Pipeline{Stages: []Stage{{Name: "build", Script: "make"}}}

	if _, err := p.Select("build", "deploy"); !errors.Is(err, ErrStageNotFound) {
		t.Fatalf("Select() error = %v, want ErrStageNotFound", err)
	}
}
