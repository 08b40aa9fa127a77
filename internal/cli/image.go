package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jarvis-ci/jarvis/internal/image"
)

// Represents the 'jarvis image' command.
type ImageCmd struct {
	Project ProjectFlags `embed:""`
	Runtime RuntimeFlags `embed:""`
}

// Executes the image command.
//
// Builds the image when no image with the recipe's tag exists, then prints
// the tag.
func (c *ImageCmd) Run(ctx context.Context, stdout io.Writer) error {
	ws, err := c.Project.workspace()
	if err != nil {
		return err
	}

	rt, err := openRuntime(&c.Runtime)
	if err != nil {
		return err
	}
	defer rt.Close()

	tag, err := image.NewProvisioner(rt).Ensure(ctx, c.Project.recipe(ws), c.Project.Context)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, tag)
	return nil
}
