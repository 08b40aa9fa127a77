// Package containerd implements the container runtime on containerd.
//
// Containers are created from images in the configured namespace with a fresh
// snapshot, the workspace bind-mounted, and a long-running task (sleep
// infinity) so that commands can be attached to it as additional execs. The
// task shares the host network namespace and resolv.conf.
//
// containerd has no Dockerfile frontend. Builds are delegated to nerdctl,
// which drives BuildKit and stores the result in the same namespace. Image
// references are normalised the way nerdctl stores them, so a bare tag such as
// "jarvis-image-<hex>" is looked up as "docker.io/library/jarvis-image-<hex>:latest".
package containerd
