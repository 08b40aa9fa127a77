package image

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jarvis-ci/jarvis/internal/fault"
	"github.com/jarvis-ci/jarvis/internal/identity"
	"github.com/jarvis-ci/jarvis/internal/runtime"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Ensures content-addressed images exist in a runtime.
type Provisioner struct {
	rt  runtime.Runtime
	now func() time.Time
}

// Creates a provisioner backed by rt.
func NewProvisioner(rt runtime.Runtime) *Provisioner {
	return &Provisioner{rt: rt, now: time.Now}
}

// Returns the tag of an image built from the recipe, building it if missing.
//
// The recipe must be a file inside contextDir. When contextDir is empty, the
// recipe's directory is used. On a cache hit no build is started. A failed
// build reports every line of its log at error level and returns an error
// matching [ErrBuild].
func (p *Provisioner) Ensure(ctx context.Context, recipePath, contextDir string) (string, error) {
	recipeDigest, err := identity.FromFile(recipePath)
	if err != nil {
		return "", err
	}
	tag := identity.TagFor(recipeDigest)

	exists, err := p.rt.ImageExists(ctx, tag)
	if err != nil {
		return "", err
	}
	if exists {
		slog.Info("found previously built container image", "image", tag)
		return tag, nil
	}

	if contextDir == "" {
		contextDir = filepath.Dir(recipePath)
	}
	recipe, err := relativeRecipe(recipePath, contextDir)
	if err != nil {
		return "", err
	}

	slog.Info("no image found, building container; this may take a while", "image", tag, "context", contextDir)

	err = p.rt.BuildImage(ctx, runtime.BuildOptions{
		ContextDir: contextDir,
		Recipe:     recipe,
		Tag:        tag,
		Labels: map[string]string{
			ocispec.AnnotationTitle:   tag,
			ocispec.AnnotationCreated: p.now().UTC().Format(time.RFC3339),
			runtime.RecipeLabel:       recipeDigest.String(),
		},
	})
	if err != nil {
		var buildErr *runtime.BuildError
		if errors.As(err, &buildErr) {
			slog.Error("container build failed, check the following output for errors")
			for _, line := range buildErr.Log {
				slog.Error(line)
			}
		}
		return "", fault.Wrap(ErrBuild, err)
	}

	slog.Info("container built", "image", tag)
	return tag, nil
}

// Returns the recipe path relative to the context directory.
//
// The context must be a directory and must contain the recipe.
func relativeRecipe(recipePath, contextDir string) (string, error) {
	info, err := os.Stat(contextDir)
	if err != nil {
		return "", fault.Wrap(ErrContext, err)
	}
	if !info.IsDir() {
		return "", fault.Wrapf(ErrContext, "%s is not a directory", contextDir)
	}

	absRecipe, err := filepath.Abs(recipePath)
	if err != nil {
		return "", fault.Wrap(ErrContext, err)
	}
	absContext, err := filepath.Abs(contextDir)
	if err != nil {
		return "", fault.Wrap(ErrContext, err)
	}

	rel, err := filepath.Rel(absContext, absRecipe)
	if err != nil {
		return "", fault.Wrap(ErrContext, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fault.Wrapf(ErrContext, "recipe %s is outside of build context %s", recipePath, contextDir)
	}
	return rel, nil
}
