package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jarvis-ci/jarvis/internal/pipeline"
	"github.com/jarvis-ci/jarvis/internal/workspace"
)

// Represents the 'jarvis validate' command.
type ValidateCmd struct {
	Jarvisfile string `short:"f" help:"Pipeline definition. Defaults to Jarvisfile in the workspace." placeholder:"PATH" env:"JARVIS_JARVISFILE"`
	Workspace  string `short:"w" help:"Workspace holding the Jarvisfile. Defaults to the enclosing git repository." placeholder:"DIR" env:"JARVIS_WORKSPACE"`
}

// Executes the validate command.
//
// Prints one stage name per line, in execution order.
func (c *ValidateCmd) Run(ctx context.Context, stdout io.Writer) error {
	ws, err := workspace.Resolve(c.Workspace)
	if err != nil {
		return err
	}

	p, err := pipeline.Load(resolvePath(c.Jarvisfile, ws.Dir, pipeline.DefaultFile))
	if err != nil {
		return err
	}

	for _, name := range p.Names() {
		fmt.Fprintln(stdout, name)
	}
	return nil
}
