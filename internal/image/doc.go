// Package image provisions the container image a pipeline runs in.
//
// The image tag is derived from the recipe's content (see the identity
// package), so an image is reused for as long as the recipe is unchanged and
// rebuilt as soon as it is edited. Images are never deleted.
//
// Example usage:
//
//	p := image.NewProvisioner(rt)
//	tag, err := p.Ensure(ctx, "ci/Dockerfile", ".")
//	if err != nil {
//	    return err // build log already reported at error level
//	}
package image
