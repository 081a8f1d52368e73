// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallToolOwnRegistry(t *testing.T) {
	t.Parallel()

	s := NewServer("main")
	require.NoError(t, s.AddTool(textTool("echo", "hello")))

	res, err := s.CallTool(context.Background(), "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Content[0].Text)
}

func TestCallToolPrefixedMount(t *testing.T) {
	t.Parallel()

	child := NewServer("analytics-svc")
	require.NoError(t, child.AddTool(textTool("analyze_pricing", "42")))

	parent := NewServer("main")
	parent.Mount(child, WithPrefix("analytics"))

	res, err := parent.CallTool(context.Background(), "analytics_analyze_pricing", nil)
	require.NoError(t, err)
	assert.Equal(t, "42", res.Content[0].Text)

	// The unprefixed name is not visible on the parent.
	_, err = parent.CallTool(context.Background(), "analyze_pricing", nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCallToolUnprefixedMountOrder(t *testing.T) {
	t.Parallel()

	first := NewServer("first")
	require.NoError(t, first.AddTool(textTool("ping", "from-first")))
	second := NewServer("second")
	require.NoError(t, second.AddTool(textTool("ping", "from-second")))
	require.NoError(t, second.AddTool(textTool("only_second", "unique")))

	parent := NewServer("main")
	m1 := parent.Mount(first)
	parent.Mount(second)

	res, err := parent.CallTool(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "from-first", res.Content[0].Text, "earliest mount wins on collision")

	res, err = parent.CallTool(context.Background(), "only_second", nil)
	require.NoError(t, err)
	assert.Equal(t, "unique", res.Content[0].Text, "non-colliding names reach later mounts")

	parent.Unmount(m1)
	res, err = parent.CallTool(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "from-second", res.Content[0].Text, "shadowed component surfaces after unmount")
}

func TestOwnToolShadowsMounts(t *testing.T) {
	t.Parallel()

	child := NewServer("child")
	require.NoError(t, child.AddTool(textTool("ping", "child")))

	parent := NewServer("main")
	require.NoError(t, parent.AddTool(textTool("ping", "parent")))
	parent.Mount(child)

	res, err := parent.CallTool(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "parent", res.Content[0].Text)

	tools, err := parent.ListTools(context.Background())
	require.NoError(t, err)
	names := map[string]int{}
	for _, tool := range tools {
		names[tool.Name]++
	}
	assert.Equal(t, 1, names["ping"], "collisions are deduplicated in the composed view")
}

func TestNotFoundNamesKindAndIdentifier(t *testing.T) {
	t.Parallel()

	s := NewServer("main")

	_, err := s.CallTool(context.Background(), "ghost", nil)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "tool")
	assert.Contains(t, err.Error(), `"ghost"`)

	_, err = s.ReadResource(context.Background(), "data://ghost")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "resource")
	assert.Contains(t, err.Error(), `"data://ghost"`)

	_, err = s.GetPrompt(context.Background(), "ghost", nil)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "prompt")
}

func TestRoutingErrorCarriesPrefixChain(t *testing.T) {
	t.Parallel()

	leaf := NewServer("leaf")
	mid := NewServer("mid")
	mid.Mount(leaf, WithPrefix("b"))
	parent := NewServer("main")
	parent.Mount(mid, WithPrefix("a"))

	_, err := parent.CallTool(context.Background(), "a_b_ghost", nil)
	require.Error(t, err)

	var re *RoutingError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, []string{"a", "b"}, re.Chain)
	assert.Equal(t, KindTool, re.Kind)
	assert.Equal(t, "ghost", re.Name)
	assert.ErrorIs(t, err, ErrRouting)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPrefixMatchCommitsRouting(t *testing.T) {
	t.Parallel()

	// A mount whose prefix matches owns the name, even if the child cannot
	// resolve it and an unprefixed mount could.
	empty := NewServer("empty")
	fallback := NewServer("fallback")
	require.NoError(t, fallback.AddTool(textTool("sub_echo", "should-not-win")))

	parent := NewServer("main")
	parent.Mount(empty, WithPrefix("sub"))
	parent.Mount(fallback)

	_, err := parent.CallTool(context.Background(), "sub_echo", nil)
	var re *RoutingError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, []string{"sub"}, re.Chain)
}

func TestReadResourceOwnTemplate(t *testing.T) {
	t.Parallel()

	s := NewServer("main")
	require.NoError(t, s.AddTemplate(&ResourceTemplate{
		URITemplate: "weather://forecast/{city}",
		MimeType:    "text/plain",
		Handler: func(_ context.Context, params map[string]string) (*ResourceContents, error) {
			return &ResourceContents{Data: []byte("sunny in " + params["city"])}, nil
		},
	}))

	contents, err := s.ReadResource(context.Background(), "weather://forecast/berlin")
	require.NoError(t, err)
	assert.Equal(t, "sunny in berlin", string(contents.Data))
}

func TestReadResourcePrefixedMount(t *testing.T) {
	t.Parallel()

	child := NewServer("child")
	require.NoError(t, child.AddResource(staticResource("data://config", "v1")))

	parent := NewServer("main")
	parent.Mount(child, WithPrefix("sub"))

	// Path encoding is the canonical prefixed form.
	contents, err := parent.ReadResource(context.Background(), "data://sub/config")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(contents.Data))

	// The legacy protocol encoding resolves too.
	contents, err = parent.ReadResource(context.Background(), "sub+data://config")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(contents.Data))

	_, err = parent.ReadResource(context.Background(), "data://config")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReadResourceMountedTemplate(t *testing.T) {
	t.Parallel()

	child := NewServer("child")
	require.NoError(t, child.AddTemplate(&ResourceTemplate{
		URITemplate: "data://users/{id}",
		Handler: func(_ context.Context, params map[string]string) (*ResourceContents, error) {
			return &ResourceContents{Data: []byte("user-" + params["id"])}, nil
		},
	}))

	parent := NewServer("main")
	parent.Mount(child, WithPrefix("crm"))

	contents, err := parent.ReadResource(context.Background(), "data://crm/users/7")
	require.NoError(t, err)
	assert.Equal(t, "user-7", string(contents.Data))
}

func TestGetPromptThroughMount(t *testing.T) {
	t.Parallel()

	child := NewServer("child")
	require.NoError(t, child.AddPrompt(&Prompt{
		Name: "summarize",
		Handler: func(_ context.Context, args map[string]string) (*PromptResult, error) {
			return &PromptResult{Messages: []PromptMessage{{Role: "user", Content: "summarize " + args["topic"]}}}, nil
		},
	}))

	parent := NewServer("main")
	parent.Mount(child, WithPrefix("docs"))

	res, err := parent.GetPrompt(context.Background(), "docs_summarize", map[string]string{"topic": "go"})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "summarize go", res.Messages[0].Content)
}

func TestListComposedViewAppliesPrefixes(t *testing.T) {
	t.Parallel()

	child := NewServer("child")
	require.NoError(t, child.AddTool(textTool("analyze", "ok")))
	require.NoError(t, child.AddResource(staticResource("data://config", "v1")))
	require.NoError(t, child.AddTemplate(&ResourceTemplate{
		URITemplate: "data://users/{id}",
		Handler: func(_ context.Context, _ map[string]string) (*ResourceContents, error) {
			return &ResourceContents{}, nil
		},
	}))
	require.NoError(t, child.AddPrompt(&Prompt{
		Name: "ask",
		Handler: func(_ context.Context, _ map[string]string) (*PromptResult, error) {
			return &PromptResult{}, nil
		},
	}))

	parent := NewServer("main")
	parent.Mount(child, WithPrefix("p"))

	tools, err := parent.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "p_analyze", tools[0].Name)

	resources, err := parent.ListResources(context.Background())
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "data://p/config", resources[0].URI)

	templates, err := parent.ListResourceTemplates(context.Background())
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "data://p/users/{id}", templates[0].URITemplate)

	prompts, err := parent.ListPrompts(context.Background())
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Equal(t, "p_ask", prompts[0].Name)
}

func TestListedComponentsAreCallable(t *testing.T) {
	t.Parallel()

	child := NewServer("child")
	require.NoError(t, child.AddTool(textTool("analyze", "listed")))

	parent := NewServer("main")
	parent.Mount(child, WithPrefix("p"))

	tools, err := parent.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].Handler)

	res, err := tools[0].Handler(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "listed", res.Content[0].Text)
}

func TestHandlerErrorsPropagateUnchanged(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("backend unavailable")
	child := NewServer("child")
	require.NoError(t, child.AddTool(&Tool{
		Name: "flaky",
		Handler: func(_ context.Context, _ map[string]any) (*ToolResult, error) {
			return nil, sentinel
		},
	}))

	parent := NewServer("main")
	parent.Mount(child, WithPrefix("sub"))

	_, err := parent.CallTool(context.Background(), "sub_flaky", nil)
	require.ErrorIs(t, err, sentinel)
	var re *RoutingError
	assert.False(t, errors.As(err, &re), "execution failures are not routing failures")
}

func TestCancellationPropagatesToHandlers(t *testing.T) {
	t.Parallel()

	child := NewServer("child")
	require.NoError(t, child.AddTool(&Tool{
		Name: "slow",
		Handler: func(ctx context.Context, _ map[string]any) (*ToolResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}))

	parent := NewServer("main")
	parent.Mount(child, WithPrefix("sub"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := parent.CallTool(ctx, "sub_slow", nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMiddlewareOrderAndDelegation(t *testing.T) {
	t.Parallel()

	child := NewServer("child")
	require.NoError(t, child.AddTool(textTool("echo", "ok")))

	parent := NewServer("main")
	parent.Mount(child, WithPrefix("sub"))

	var order []string
	mw := func(label string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, inv Invocation) (any, error) {
				order = append(order, label+":"+inv.Name)
				return next(ctx, inv)
			}
		}
	}
	parent.Use(mw("outer"))
	parent.Use(mw("inner"))

	_, err := parent.CallTool(context.Background(), "sub_echo", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"outer:sub_echo", "inner:sub_echo"}, order,
		"middleware wraps in registration order and sees delegated calls")
}
