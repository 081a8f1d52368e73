// SPDX-License-Identifier: Apache-2.0

package mapper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/toolfuse/toolfuse/pkg/fuse"
)

// RequestFunc is the HTTP calling capability synthesized components are
// built on: it executes one request and returns the status and raw body.
// The mapper never re-implements HTTP transport.
type RequestFunc func(ctx context.Context, method, path string, query url.Values, body []byte) (int, []byte, error)

// NewHTTPRequester builds a RequestFunc issuing requests against baseURL
// with the given client. A nil client uses http.DefaultClient.
func NewHTTPRequester(client *http.Client, baseURL string) RequestFunc {
	if client == nil {
		client = http.DefaultClient
	}
	base := strings.TrimRight(baseURL, "/")
	return func(ctx context.Context, method, path string, query url.Values, body []byte) (int, []byte, error) {
		target := base + path
		if len(query) > 0 {
			target += "?" + query.Encode()
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return 0, nil, fmt.Errorf("building request for %s %s: %w", method, path, err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return 0, nil, fmt.Errorf("calling %s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, nil, fmt.Errorf("reading response of %s %s: %w", method, path, err)
		}
		return resp.StatusCode, respBody, nil
	}
}

// bodySuffix and querySuffix disambiguate a flattened body property or a
// query parameter whose name collides with an earlier parameter.
const (
	bodySuffix  = "__body"
	querySuffix = "__query"
)

// inputSchema is the synthesized JSON Schema for a tool's arguments plus the
// bookkeeping needed to route argument values back to their wire position.
type inputSchema struct {
	schema map[string]any

	// queryKeys maps exposed argument name -> query parameter name.
	queryKeys map[string]string

	// bodyKeys maps exposed argument name -> body property name for
	// flattened object bodies. Empty when the body is carried whole.
	bodyKeys map[string]string

	// wholeBody is set when the body schema is not a flattenable object;
	// the body is then exposed as the single "body" argument.
	wholeBody bool
}

func buildInputSchema(op Operation) inputSchema {
	properties := make(map[string]any)
	var required []string

	out := inputSchema{
		queryKeys: make(map[string]string),
		bodyKeys:  make(map[string]string),
	}

	for _, p := range op.PathParams {
		properties[p.Name] = paramSchema(p)
		required = append(required, p.Name)
	}
	for _, p := range op.QueryParams {
		exposed := p.Name
		if _, taken := properties[exposed]; taken {
			exposed = p.Name + querySuffix
		}
		properties[exposed] = paramSchema(p)
		out.queryKeys[exposed] = p.Name
		if p.Required {
			required = append(required, exposed)
		}
	}
	if op.RequestBody != nil {
		props, bodyRequired, flattenable := objectBody(op.RequestBody.Schema)
		if flattenable {
			requiredSet := make(map[string]bool, len(bodyRequired))
			for _, name := range bodyRequired {
				requiredSet[name] = true
			}
			for name, schema := range props {
				exposed := name
				if _, taken := properties[exposed]; taken {
					exposed = name + bodySuffix
				}
				properties[exposed] = schema
				out.bodyKeys[exposed] = name
				if op.RequestBody.Required && requiredSet[name] {
					required = append(required, exposed)
				}
			}
		} else {
			out.wholeBody = true
			schema := op.RequestBody.Schema
			if schema == nil {
				schema = map[string]any{}
			}
			properties["body"] = schema
			if op.RequestBody.Required {
				required = append(required, "body")
			}
		}
	}

	out.schema = map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		out.schema["required"] = required
	}
	return out
}

func paramSchema(p Param) map[string]any {
	if p.Schema != nil {
		return p.Schema
	}
	return map[string]any{"type": "string"}
}

// objectBody reports whether the body schema is an object with named
// properties, which is the shape the mapper flattens into tool arguments.
func objectBody(schema map[string]any) (map[string]any, []string, bool) {
	if schema == nil {
		return nil, nil, false
	}
	if t, _ := schema["type"].(string); t != "object" {
		return nil, nil, false
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok || len(props) == 0 {
		return nil, nil, false
	}
	out := make(map[string]any, len(props))
	for name, s := range props {
		ps, ok := s.(map[string]any)
		if !ok {
			ps = map[string]any{}
		}
		out[name] = ps
	}
	var required []string
	if raw, ok := schema["required"].([]any); ok {
		for _, r := range raw {
			if name, ok := r.(string); ok {
				required = append(required, name)
			}
		}
	} else if names, ok := schema["required"].([]string); ok {
		required = names
	}
	return out, required, true
}

func componentDescription(op Operation) string {
	if op.Description != "" {
		return op.Description
	}
	if op.Summary != "" {
		return op.Summary
	}
	return fmt.Sprintf("%s %s", op.Method, op.Path)
}

func componentTags(op Operation, extra []string) []string {
	if len(op.Tags) == 0 && len(extra) == 0 {
		return nil
	}
	tags := make([]string, 0, len(op.Tags)+len(extra))
	tags = append(tags, op.Tags...)
	tags = append(tags, extra...)
	return tags
}

func (m *Mapper) synthesizeTool(op Operation, ruleTags []string) *fuse.Tool {
	in := buildInputSchema(op)
	return &fuse.Tool{
		Name:        op.OperationID,
		Description: componentDescription(op),
		Tags:        componentTags(op, ruleTags),
		InputSchema: in.schema,
		Meta: map[string]any{
			"method": op.Method,
			"path":   op.Path,
		},
		Handler: func(ctx context.Context, args map[string]any) (*fuse.ToolResult, error) {
			path, err := substitutePath(op, args)
			if err != nil {
				return nil, err
			}
			query := collectQuery(in, args)
			body, err := collectBody(op, in, args)
			if err != nil {
				return nil, err
			}

			status, respBody, err := m.request(ctx, op.Method, path, query, body)
			if err != nil {
				return nil, err
			}
			if status < 200 || status >= 300 {
				return nil, &fuse.UpstreamError{StatusCode: status, Body: respBody}
			}
			return toolResult(respBody), nil
		},
	}
}

func (m *Mapper) synthesizeResource(op Operation, ruleTags []string) *fuse.Resource {
	return &fuse.Resource{
		URI:         "resource://" + op.OperationID,
		Name:        op.OperationID,
		Description: componentDescription(op),
		Tags:        componentTags(op, ruleTags),
		MimeType:    "application/json",
		Handler: func(ctx context.Context) (*fuse.ResourceContents, error) {
			status, respBody, err := m.request(ctx, op.Method, op.Path, nil, nil)
			if err != nil {
				return nil, err
			}
			if status < 200 || status >= 300 {
				return nil, &fuse.UpstreamError{StatusCode: status, Body: respBody}
			}
			return &fuse.ResourceContents{Data: respBody, MimeType: "application/json"}, nil
		},
	}
}

func (m *Mapper) synthesizeTemplate(op Operation, ruleTags []string) *fuse.ResourceTemplate {
	uriTemplate := "resource://" + op.OperationID
	for _, p := range op.PathParams {
		uriTemplate += "/{" + p.Name + "}"
	}
	return &fuse.ResourceTemplate{
		URITemplate: uriTemplate,
		Name:        op.OperationID,
		Description: componentDescription(op),
		Tags:        componentTags(op, ruleTags),
		MimeType:    "application/json",
		Handler: func(ctx context.Context, params map[string]string) (*fuse.ResourceContents, error) {
			args := make(map[string]any, len(params))
			for k, v := range params {
				args[k] = v
			}
			path, err := substitutePath(op, args)
			if err != nil {
				return nil, err
			}
			status, respBody, err := m.request(ctx, op.Method, path, nil, nil)
			if err != nil {
				return nil, err
			}
			if status < 200 || status >= 300 {
				return nil, &fuse.UpstreamError{StatusCode: status, Body: respBody}
			}
			return &fuse.ResourceContents{Data: respBody, MimeType: "application/json"}, nil
		},
	}
}

// substitutePath fills the operation's {param} placeholders from args. Path
// parameters are required: a missing one fails before any request is made.
func substitutePath(op Operation, args map[string]any) (string, error) {
	path := op.Path
	for _, p := range op.PathParams {
		v, ok := args[p.Name]
		if !ok || v == nil {
			return "", fmt.Errorf("%w: missing required path parameter %q", fuse.ErrInvalidInput, p.Name)
		}
		path = strings.ReplaceAll(path, "{"+p.Name+"}", url.PathEscape(fmt.Sprintf("%v", v)))
	}
	return path, nil
}

func collectQuery(in inputSchema, args map[string]any) url.Values {
	query := url.Values{}
	for exposed, name := range in.queryKeys {
		if v, ok := args[exposed]; ok && v != nil {
			query.Set(name, fmt.Sprintf("%v", v))
		}
	}
	return query
}

func collectBody(op Operation, in inputSchema, args map[string]any) ([]byte, error) {
	if op.RequestBody == nil {
		return nil, nil
	}
	if in.wholeBody {
		v, ok := args["body"]
		if !ok {
			if op.RequestBody.Required {
				return nil, fmt.Errorf("%w: missing required body", fuse.ErrInvalidInput)
			}
			return nil, nil
		}
		return json.Marshal(v)
	}

	body := make(map[string]any)
	for exposed, prop := range in.bodyKeys {
		if v, ok := args[exposed]; ok {
			body[prop] = v
		}
	}
	if len(body) == 0 && !op.RequestBody.Required {
		return nil, nil
	}
	return json.Marshal(body)
}

// toolResult wraps a 2xx response body: JSON objects additionally populate
// the structured content.
func toolResult(body []byte) *fuse.ToolResult {
	result := &fuse.ToolResult{Content: fuse.NewTextContent(string(body))}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err == nil {
		result.StructuredContent = decoded
	}
	return result
}
