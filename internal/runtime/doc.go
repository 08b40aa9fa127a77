// Package runtime defines the container capabilities the runner depends on.
//
// A [Runtime] checks for and builds images, starts containers and prunes the
// ones it has stopped. A [Container] executes commands and stops. A [Process]
// exposes the merged stdout/stderr of one command as a stream and reports the
// exit code once the command is done. Nothing outside the backend packages
// touches a client library directly, so any engine satisfying these interfaces
// is substitutable:
//
//	rt, err := docker.New(docker.Config{})
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	ctr, err := rt.StartContainer(ctx, runtime.ContainerOptions{
//	    Image:      tag,
//	    Workspace:  "/home/me/project",
//	    MountPoint: "/jarvis",
//	})
//	if err != nil {
//	    return err
//	}
//	defer ctr.Stop(ctx, 10*time.Second)
//
//	proc, err := ctr.Exec(ctx, runtime.ExecOptions{Args: []string{"/bin/sh", "-c", "make"}})
//	if err != nil {
//	    return err
//	}
//	io.Copy(os.Stdout, proc.Output())
//	code, err := proc.Wait(ctx)
//
// Backends live in the docker and containerd subpackages; runtimetest provides
// an in-memory implementation for tests.
package runtime
