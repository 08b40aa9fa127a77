package identity

import (
	"os"

	"github.com/jarvis-ci/jarvis/internal/fault"
	"github.com/opencontainers/go-digest"
)

// Prefix shared by every image jarvis builds.
const TagPrefix = "jarvis-image-"

// Computes the digest of the file at path.
//
// The file is read as raw bytes without any normalisation. A missing file
// yields an error that matches both [ErrRecipe] and [fs.ErrNotExist].
func FromFile(path string) (digest.Digest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fault.Wrap(ErrRecipe, err)
	}
	if info.IsDir() {
		return "", fault.Wrapf(ErrRecipe, "%s is a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fault.Wrap(ErrRecipe, err)
	}
	defer f.Close()

	d, err := digest.SHA256.FromReader(f)
	if err != nil {
		return "", fault.Wrap(ErrRecipe, err)
	}
	return d, nil
}

// Returns the image tag for a recipe digest.
func TagFor(d digest.Digest) string {
	return TagPrefix + d.Encoded()
}

// Computes the image tag for the recipe at path.
func Tag(path string) (string, error) {
	d, err := FromFile(path)
	if err != nil {
		return "", err
	}
	return TagFor(d), nil
}
