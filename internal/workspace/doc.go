// Package workspace locates the directory mounted into the build container.
//
// Without an explicit directory the workspace is the root of the git
// repository enclosing the working directory, so jarvis behaves the same from
// any subdirectory of a project. Outside a repository the working directory
// itself is used.
package workspace
