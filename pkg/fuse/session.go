// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/toolfuse/toolfuse/pkg/logger"
)

// localSession is the in-process SessionCaller backing proxy-mode mounts of
// local children. It gives the child the same lifecycle it would get behind
// a transport: the startup hook runs once before the first request, the
// teardown hook runs on Close.
type localSession struct {
	id    string
	child *Server

	startOnce sync.Once
	startErr  error

	// mu orders the start outcome against Close: Close may legally race the
	// first call's startup (Unmount with a call in flight), so it must wait
	// for start to settle before deciding whether teardown runs.
	mu      sync.Mutex
	started bool

	closeOnce sync.Once
}

var _ SessionCaller = (*localSession)(nil)

func newLocalSession(child *Server) *localSession {
	return &localSession{
		id:    uuid.NewString(),
		child: child,
	}
}

// ensureStarted runs the child's startup hook exactly once. A startup
// failure is sticky: every subsequent request on the session fails with the
// same error.
func (s *localSession) ensureStarted(ctx context.Context) error {
	s.startOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.startErr = s.child.Start(ctx)
		if s.startErr == nil {
			s.started = true
			logger.Debugf("Session %s opened for server %s", s.id, s.child.Name())
		}
	})
	return s.startErr
}

func (s *localSession) ListTools(ctx context.Context) ([]*Tool, error) {
	if err := s.ensureStarted(ctx); err != nil {
		return nil, err
	}
	return s.child.ListTools(ctx)
}

func (s *localSession) ListResources(ctx context.Context) ([]*Resource, error) {
	if err := s.ensureStarted(ctx); err != nil {
		return nil, err
	}
	return s.child.ListResources(ctx)
}

func (s *localSession) ListResourceTemplates(ctx context.Context) ([]*ResourceTemplate, error) {
	if err := s.ensureStarted(ctx); err != nil {
		return nil, err
	}
	return s.child.ListResourceTemplates(ctx)
}

func (s *localSession) ListPrompts(ctx context.Context) ([]*Prompt, error) {
	if err := s.ensureStarted(ctx); err != nil {
		return nil, err
	}
	return s.child.ListPrompts(ctx)
}

func (s *localSession) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	if err := s.ensureStarted(ctx); err != nil {
		return nil, err
	}
	return s.child.CallTool(ctx, name, args)
}

func (s *localSession) ReadResource(ctx context.Context, uri string) (*ResourceContents, error) {
	if err := s.ensureStarted(ctx); err != nil {
		return nil, err
	}
	return s.child.ReadResource(ctx, uri)
}

func (s *localSession) GetPrompt(ctx context.Context, name string, args map[string]string) (*PromptResult, error) {
	if err := s.ensureStarted(ctx); err != nil {
		return nil, err
	}
	return s.child.GetPrompt(ctx, name, args)
}

// Close runs the child's teardown hook if the session ever started.
func (s *localSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.started {
			return
		}
		err = s.child.Stop(context.Background())
		logger.Debugf("Session %s closed for server %s", s.id, s.child.Name())
	})
	return err
}
