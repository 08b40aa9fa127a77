package cli

import (
	"context"
	"fmt"

	"github.com/jarvis-ci/jarvis/internal"
)

// Represents the 'jarvis version' command.
type VersionCmd struct{}

// Executes the version command.
func (c *VersionCmd) Run(ctx context.Context) error {
	fmt.Println(internal.VersionString())
	return nil
}
