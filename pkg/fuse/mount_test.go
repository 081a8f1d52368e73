// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMountMode(t *testing.T) {
	t.Parallel()

	plain := NewServer("plain")
	assert.Equal(t, ModeDirect, DefaultMountMode(plain))

	withHooks := NewServer("hooked", WithLifespan(
		func(_ context.Context) error { return nil },
		func(_ context.Context) error { return nil },
	))
	assert.Equal(t, ModeProxy, DefaultMountMode(withHooks))
}

func TestMountModeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "auto", ModeAuto.String())
	assert.Equal(t, "direct", ModeDirect.String())
	assert.Equal(t, "proxy", ModeProxy.String())
}

func TestProxyMountRunsLifecycle(t *testing.T) {
	t.Parallel()

	var started, stopped atomic.Int32
	child := NewServer("lifecycled", WithLifespan(
		func(_ context.Context) error { started.Add(1); return nil },
		func(_ context.Context) error { stopped.Add(1); return nil },
	))
	require.NoError(t, child.AddTool(textTool("work", "done")))

	parent := NewServer("main")
	m := parent.Mount(child, WithPrefix("sub"))
	require.Equal(t, ModeProxy, m.Mode(), "lifespan forces proxy under auto mode")
	assert.Zero(t, started.Load(), "mounting alone must not start the child")

	for range 2 {
		_, err := parent.CallTool(context.Background(), "sub_work", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), started.Load(), "startup hook runs once per session")
	assert.Zero(t, stopped.Load())

	parent.Unmount(m)
	assert.Equal(t, int32(1), stopped.Load(), "unmount tears the session down")
}

func TestDirectMountSkipsLifecycle(t *testing.T) {
	t.Parallel()

	var started atomic.Int32
	child := NewServer("lifecycled", WithLifespan(
		func(_ context.Context) error { started.Add(1); return nil },
		nil,
	))
	require.NoError(t, child.AddTool(textTool("work", "done")))

	parent := NewServer("main")
	m := parent.Mount(child, WithPrefix("sub"), WithMountMode(ModeDirect))
	require.Equal(t, ModeDirect, m.Mode())

	_, err := parent.CallTool(context.Background(), "sub_work", nil)
	require.NoError(t, err)
	assert.Zero(t, started.Load(), "direct delegation bypasses the session layer")
}

func TestMountIsLive(t *testing.T) {
	t.Parallel()

	child := NewServer("child")
	parent := NewServer("main")
	parent.Mount(child, WithPrefix("sub"))

	_, err := parent.CallTool(context.Background(), "sub_late", nil)
	require.ErrorIs(t, err, ErrNotFound)

	// A component added to the child after mounting is immediately
	// resolvable through the parent.
	require.NoError(t, child.AddTool(textTool("late", "arrived")))
	res, err := parent.CallTool(context.Background(), "sub_late", nil)
	require.NoError(t, err)
	assert.Equal(t, "arrived", res.Content[0].Text)
}

func TestUnmountLeavesChildIntact(t *testing.T) {
	t.Parallel()

	child := NewServer("child")
	require.NoError(t, child.AddTool(textTool("work", "done")))

	parent := NewServer("main")
	m := parent.Mount(child, WithPrefix("sub"))
	parent.Unmount(m)

	_, err := parent.CallTool(context.Background(), "sub_work", nil)
	require.ErrorIs(t, err, ErrNotFound)

	res, err := child.CallTool(context.Background(), "work", nil)
	require.NoError(t, err)
	assert.Equal(t, "done", res.Content[0].Text)
}

func TestMountsSnapshot(t *testing.T) {
	t.Parallel()

	parent := NewServer("main")
	m1 := parent.Mount(NewServer("a"), WithPrefix("a"))
	m2 := parent.Mount(NewServer("b"))

	mounts := parent.Mounts()
	require.Len(t, mounts, 2)
	assert.Same(t, m1, mounts[0])
	assert.Same(t, m2, mounts[1])
	assert.Equal(t, "a", mounts[0].Prefix())
	assert.Equal(t, "", mounts[1].Prefix())
}

func TestUnmountDuringFirstCallStillStopsChild(t *testing.T) {
	t.Parallel()

	starting := make(chan struct{})
	release := make(chan struct{})
	var started, stopped atomic.Int32
	child := NewServer("lifecycled", WithLifespan(
		func(_ context.Context) error {
			started.Add(1)
			close(starting)
			<-release
			return nil
		},
		func(_ context.Context) error { stopped.Add(1); return nil },
	))
	require.NoError(t, child.AddTool(textTool("work", "done")))

	parent := NewServer("main")
	m := parent.Mount(child, WithPrefix("sub"))

	callDone := make(chan error, 1)
	go func() {
		_, err := parent.CallTool(context.Background(), "sub_work", nil)
		callDone <- err
	}()

	// Unmount while the first call is still inside the startup hook. The
	// in-flight call completes independently, and teardown must wait for
	// the start outcome instead of skipping the stop hook.
	<-starting
	unmountDone := make(chan struct{})
	go func() {
		parent.Unmount(m)
		close(unmountDone)
	}()
	close(release)

	require.NoError(t, <-callDone)
	<-unmountDone
	assert.Equal(t, int32(1), started.Load())
	assert.Equal(t, int32(1), stopped.Load(), "close racing startup must still tear down")
}

func TestLocalSessionStartFailureIsSticky(t *testing.T) {
	t.Parallel()

	child := NewServer("broken", WithLifespan(
		func(_ context.Context) error { return assert.AnError },
		nil,
	))
	require.NoError(t, child.AddTool(textTool("work", "done")))

	parent := NewServer("main")
	parent.Mount(child, WithPrefix("sub"))

	for range 2 {
		_, err := parent.CallTool(context.Background(), "sub_work", nil)
		require.ErrorIs(t, err, assert.AnError)
	}
}
