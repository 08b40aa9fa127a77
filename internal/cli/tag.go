package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jarvis-ci/jarvis/internal/identity"
)

// Represents the 'jarvis tag' command.
type TagCmd struct {
	Project ProjectFlags `embed:""`
}

// Executes the tag command.
func (c *TagCmd) Run(ctx context.Context, stdout io.Writer) error {
	ws, err := c.Project.workspace()
	if err != nil {
		return err
	}

	tag, err := identity.Tag(c.Project.recipe(ws))
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, tag)
	return nil
}
