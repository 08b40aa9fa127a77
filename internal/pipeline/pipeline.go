package pipeline

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/jarvis-ci/jarvis/internal/fault"
	"gopkg.in/yaml.v3"
)

// Default name of the pipeline definition file.
const DefaultFile = "Jarvisfile"

// A named shell script.
type Stage struct {
	Name   string
	Script string
}

// Stages in execution order.
type Pipeline struct {
	Stages []Stage
}

// Raw Jarvisfile entry. A nil stage marks an entry to skip.
type entry struct {
	Stage  *string `yaml:"stage"`
	Script string  `yaml:"script"`
}

// Reads and parses the Jarvisfile at path.
func Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.Wrap(ErrDefinition, err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parses a Jarvisfile.
func Parse(data []byte) (*Pipeline, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fault.Wrap(ErrDefinition, err)
	}

	violations, err := validate(doc)
	if err != nil {
		return nil, fault.Wrap(ErrDefinition, err)
	}
	if len(violations) > 0 {
		return nil, fault.Wrapf(ErrDefinition, "%s", strings.Join(violations, "; "))
	}

	var entries []entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fault.Wrap(ErrDefinition, err)
	}

	p := &Pipeline{}
	for _, e := range entries {
		if e.Stage == nil {
			continue
		}
		p.Stages = append(p.Stages, Stage{Name: *e.Stage, Script: e.Script})
	}
	return p, nil
}

// Returns the stage names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		names[i] = s.Name
	}
	return names
}

// Returns a pipeline restricted to the named stages.
//
// File order is kept regardless of the order of names. Every stage sharing a
// selected name is kept. Without names the pipeline is returned unchanged.
func (p *Pipeline) Select(names ...string) (*Pipeline, error) {
	if len(names) == 0 {
		return p, nil
	}

	known := p.Names()
	for _, name := range names {
		if !slices.Contains(known, name) {
			return nil, fault.Wrapf(ErrStageNotFound, "%q (have %s)", name, strings.Join(known, ", "))
		}
	}

	selected := &Pipeline{}
	for _, s := range p.Stages {
		if slices.Contains(names, s.Name) {
			selected.Stages = append(selected.Stages, s)
		}
	}
	return selected, nil
}
