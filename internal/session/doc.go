// Package session owns the container backing one pipeline run.
//
// A [Session] moves through three states. It starts Unstarted; the first
// command (or an explicit [Session.EnsureStarted]) starts an idle container
// with the workspace mounted and moves it to Running; [Session.Teardown] stops
// and prunes the container and moves it to Stopped. Teardown must run on every
// exit path, so callers defer it right after creating the session:
//
//	s := session.New(rt, session.Config{Image: tag, Workspace: dir, Output: console})
//	defer s.Teardown(context.WithoutCancel(ctx))
//
//	code, err := s.Run(ctx, "make test")
//
// Commands run through a shell with CI markers in their environment. Their
// output is relayed line by line while they run. Output that is not valid
// UTF-8 is reported once and relayed as quoted byte strings from then on.
package session
