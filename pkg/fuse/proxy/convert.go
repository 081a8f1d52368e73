// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/toolfuse/toolfuse/pkg/fuse"
)

// Conversions from SDK wire types back into the domain model. Handlers stay
// nil: components obtained through a caller are dispatched through that
// caller, never invoked locally.

func fromSDKTool(t *mcp.Tool) *fuse.Tool {
	return &fuse.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: toolInputSchema(t),
		Meta:        metaFields(t.Meta),
	}
}

func toolInputSchema(t *mcp.Tool) map[string]any {
	var schema map[string]any
	if len(t.RawInputSchema) > 0 {
		if err := json.Unmarshal(t.RawInputSchema, &schema); err == nil {
			return schema
		}
	}
	raw, err := json.Marshal(t.InputSchema)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil
	}
	return schema
}

func fromSDKResource(r *mcp.Resource) *fuse.Resource {
	return &fuse.Resource{
		URI:         r.URI,
		Name:        r.Name,
		Description: r.Description,
		MimeType:    r.MIMEType,
		Meta:        metaFields(r.Meta),
	}
}

func fromSDKResourceTemplate(t *mcp.ResourceTemplate) *fuse.ResourceTemplate {
	uriTemplate := ""
	if t.URITemplate != nil {
		uriTemplate = t.URITemplate.Raw()
	}
	return &fuse.ResourceTemplate{
		URITemplate: uriTemplate,
		Name:        t.Name,
		Description: t.Description,
		MimeType:    t.MIMEType,
	}
}

func fromSDKPrompt(p *mcp.Prompt) *fuse.Prompt {
	arguments := make([]fuse.PromptArgument, len(p.Arguments))
	for i, arg := range p.Arguments {
		arguments[i] = fuse.PromptArgument{
			Name:        arg.Name,
			Description: arg.Description,
			Required:    arg.Required,
		}
	}
	return &fuse.Prompt{
		Name:        p.Name,
		Description: p.Description,
		Arguments:   arguments,
	}
}

func fromSDKToolResult(result *mcp.CallToolResult) *fuse.ToolResult {
	out := &fuse.ToolResult{IsError: result.IsError}
	for _, c := range result.Content {
		switch v := c.(type) {
		case mcp.TextContent:
			out.Content = append(out.Content, fuse.Content{Type: "text", Text: v.Text})
		case mcp.ImageContent:
			out.Content = append(out.Content, fuse.Content{Type: "image", Data: v.Data, MimeType: v.MIMEType})
		case mcp.AudioContent:
			out.Content = append(out.Content, fuse.Content{Type: "audio", Data: v.Data, MimeType: v.MIMEType})
		case mcp.EmbeddedResource:
			if text, ok := v.Resource.(mcp.TextResourceContents); ok {
				out.Content = append(out.Content, fuse.Content{Type: "resource", URI: text.URI, Text: text.Text, MimeType: text.MIMEType})
			}
		}
	}
	if sc, ok := result.StructuredContent.(map[string]any); ok {
		out.StructuredContent = sc
	}
	if result.Meta != nil && len(result.Meta.AdditionalFields) > 0 {
		out.Meta = result.Meta.AdditionalFields
	}
	return out
}

func fromSDKResourceContents(contents []mcp.ResourceContents) (*fuse.ResourceContents, error) {
	if len(contents) == 0 {
		return &fuse.ResourceContents{}, nil
	}
	switch v := contents[0].(type) {
	case mcp.TextResourceContents:
		return &fuse.ResourceContents{Data: []byte(v.Text), MimeType: v.MIMEType}, nil
	case mcp.BlobResourceContents:
		data, err := base64.StdEncoding.DecodeString(v.Blob)
		if err != nil {
			return nil, fmt.Errorf("decoding blob resource: %w", err)
		}
		return &fuse.ResourceContents{Data: data, MimeType: v.MIMEType}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected resource contents type %T", fuse.ErrInvalidInput, contents[0])
	}
}

func fromSDKPromptResult(result *mcp.GetPromptResult) *fuse.PromptResult {
	out := &fuse.PromptResult{Description: result.Description}
	for _, m := range result.Messages {
		text := ""
		if tc, ok := m.Content.(mcp.TextContent); ok {
			text = tc.Text
		}
		out.Messages = append(out.Messages, fuse.PromptMessage{
			Role:    string(m.Role),
			Content: text,
		})
	}
	return out
}

func metaFields(meta *mcp.Meta) map[string]any {
	if meta == nil || len(meta.AdditionalFields) == 0 {
		return nil
	}
	return meta.AdditionalFields
}
