// Package docker implements the container runtime on the Docker Engine API.
//
// Images are built from a tarball of the context directory (honouring
// .dockerignore), containers run detached with the workspace bind-mounted, and
// commands are executed with docker exec. Exec output arrives multiplexed; it
// is demultiplexed with stdcopy into a single pipe so stdout and stderr keep
// the order in which the engine delivered them. The exit code is read with an
// exec inspect once the stream ends.
//
// The client is configured from the environment (DOCKER_HOST, DOCKER_API_VERSION,
// DOCKER_CERT_PATH, DOCKER_TLS_VERIFY) unless a host is given explicitly.
package docker
