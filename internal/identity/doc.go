// Package identity derives content-addressed image tags from build recipes.
//
// The identity of a recipe is the SHA-256 digest of its raw bytes. Only the
// content counts: file names, modification times and permissions never change
// the result, so an unchanged recipe always maps to the same tag and any edit
// produces a new one.
package identity
