// SPDX-License-Identifier: Apache-2.0

package fuse

import "context"

// This file contains the shared component model used across the fuse
// subpackages. Components are the named, callable or readable units a server
// exposes; every other package (mapper, proxy, server adapter) produces or
// consumes these types.

// ComponentKind identifies the kind of a server component.
type ComponentKind string

const (
	// KindTool is a callable action with a JSON-schema input.
	KindTool ComponentKind = "tool"

	// KindResource is a static readable identified by URI.
	KindResource ComponentKind = "resource"

	// KindResourceTemplate is a parameterized readable identified by a URI
	// template with {param} placeholders.
	KindResourceTemplate ComponentKind = "resource_template"

	// KindPrompt is a reusable, parameterized message generator.
	KindPrompt ComponentKind = "prompt"
)

// ToolHandler executes a tool call. Arguments have already been decoded from
// the wire; implementations must honor ctx cancellation for anything that
// blocks.
type ToolHandler func(ctx context.Context, args map[string]any) (*ToolResult, error)

// ResourceHandler reads a static resource.
type ResourceHandler func(ctx context.Context) (*ResourceContents, error)

// TemplateHandler reads a templated resource. params carries the values
// extracted from the URI template placeholders.
type TemplateHandler func(ctx context.Context, params map[string]string) (*ResourceContents, error)

// PromptHandler renders a prompt with the given arguments.
type PromptHandler func(ctx context.Context, args map[string]string) (*PromptResult, error)

// Tool is a callable action component.
type Tool struct {
	// Name is the tool name, unique within a registry.
	Name string

	// Description describes what the tool does.
	Description string

	// Tags are free-form labels attached to the component.
	Tags []string

	// Disabled hides the component: it stays registered but is invisible
	// to enumeration and unreachable at call time.
	Disabled bool

	// Meta is an opaque key/value bag carried alongside the component.
	Meta map[string]any

	// InputSchema is the JSON Schema for the tool's arguments.
	InputSchema map[string]any

	// Handler executes the tool. Nil for components enumerated through a
	// proxy mount; those are dispatched via the owning mount's caller.
	Handler ToolHandler
}

// Resource is a static readable component.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
	Tags        []string
	Disabled    bool
	Meta        map[string]any
	Handler     ResourceHandler
}

// ResourceTemplate is a parameterized readable component. URITemplate uses
// {param} placeholders; a read of a concrete URI matching the template invokes
// the handler with the extracted parameter values.
type ResourceTemplate struct {
	URITemplate string
	Name        string
	Description string
	MimeType    string
	Tags        []string
	Disabled    bool
	Meta        map[string]any
	Handler     TemplateHandler
}

// Prompt is a reusable message-generation component.
type Prompt struct {
	Name        string
	Description string
	Arguments   []PromptArgument
	Tags        []string
	Disabled    bool
	Meta        map[string]any
	Handler     PromptHandler
}

// PromptArgument describes one prompt parameter.
type PromptArgument struct {
	Name        string
	Description string
	Required    bool
}

// Content is one item of tool output (text, image, audio or embedded
// resource).
type Content struct {
	// Type indicates the content type: "text", "image", "audio", "resource".
	Type string

	// Text is the content text (for text content).
	Text string

	// Data is the base64-encoded payload (for image/audio content).
	Data string

	// MimeType is the MIME type (for image/audio content).
	MimeType string

	// URI is the resource URI (for embedded resources).
	URI string
}

// NewTextContent builds a single-item text content slice.
func NewTextContent(text string) []Content {
	return []Content{{Type: "text", Text: text}}
}

// ToolResult is the outcome of a tool call.
type ToolResult struct {
	// Content is the ordered tool output.
	Content []Content

	// StructuredContent is structured output keyed by field name, when the
	// tool provides it.
	StructuredContent map[string]any

	// IsError marks a tool-level failure that is still a valid protocol
	// result (as opposed to a transport or routing error).
	IsError bool

	// Meta carries protocol-level metadata from the producing server.
	Meta map[string]any
}

// ResourceContents is the outcome of a resource or template read.
type ResourceContents struct {
	// Data is the raw resource payload.
	Data []byte

	// MimeType is the content type of the payload.
	MimeType string
}

// PromptMessage is one rendered prompt message.
type PromptMessage struct {
	// Role is the speaker role ("user", "assistant", ...).
	Role string

	// Content is the message text.
	Content string
}

// PromptResult is the outcome of rendering a prompt.
type PromptResult struct {
	Description string
	Messages    []PromptMessage
}

// SessionCaller is the session-preserving remote-call abstraction used for
// PROXY-mode mounts. Implementations keep whatever session state the child
// server needs (startup/teardown hooks, protocol sessions) alive across
// calls. All methods must propagate ctx cancellation to the child.
type SessionCaller interface {
	// ListTools enumerates the child's tools.
	ListTools(ctx context.Context) ([]*Tool, error)

	// ListResources enumerates the child's static resources.
	ListResources(ctx context.Context) ([]*Resource, error)

	// ListResourceTemplates enumerates the child's resource templates.
	ListResourceTemplates(ctx context.Context) ([]*ResourceTemplate, error)

	// ListPrompts enumerates the child's prompts.
	ListPrompts(ctx context.Context) ([]*Prompt, error)

	// CallTool invokes a tool by its child-side name.
	CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error)

	// ReadResource reads a resource (or templated resource) by its
	// child-side URI.
	ReadResource(ctx context.Context, uri string) (*ResourceContents, error)

	// GetPrompt renders a prompt by its child-side name.
	GetPrompt(ctx context.Context, name string, args map[string]string) (*PromptResult, error)

	// Close tears down the session. Calls already dispatched complete or
	// fail independently.
	Close() error
}
