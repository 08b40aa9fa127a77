package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/alecthomas/kong"
	"github.com/jarvis-ci/jarvis/internal/fault"
	"gopkg.in/yaml.v3"
)

// Loads a YAML configuration file as a kong resolver.
//
// The document must be a mapping. It is converted to JSON and resolved with
// [kong.JSON], so keys follow the same naming rules. An empty file resolves
// nothing.
func loadConfig(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && !errors.Is(err, io.EOF) {
		return nil, fault.Wrap(ErrConfig, err)
	}

	data, err := json.Marshal(values)
	if err != nil {
		return nil, fault.Wrap(ErrConfig, err)
	}

	resolver, err := kong.JSON(bytes.NewReader(data))
	if err != nil {
		return nil, fault.Wrap(ErrConfig, err)
	}
	return resolver, nil
}
