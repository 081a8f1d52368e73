// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/toolfuse/toolfuse/pkg/fuse"
	"github.com/toolfuse/toolfuse/pkg/logger"
)

// The adapter is the boundary between the composition domain model and the
// mark3labs SDK types. Every SDK handler dispatches back through the fuse
// server, so middleware and mount routing apply to transport traffic too.

func toSDKTools(ctx context.Context, src *fuse.Server) ([]server.ServerTool, error) {
	tools, err := src.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerating tools: %w", err)
	}

	sdkTools := make([]server.ServerTool, 0, len(tools))
	for _, tool := range tools {
		schemaJSON, err := json.Marshal(tool.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("marshaling schema for tool %s: %w", tool.Name, err)
		}
		name := tool.Name
		sdkTools = append(sdkTools, server.ServerTool{
			Tool: mcp.Tool{
				Name:           name,
				Description:    tool.Description,
				RawInputSchema: schemaJSON,
			},
			Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				args, ok := request.Params.Arguments.(map[string]any)
				if !ok && request.Params.Arguments != nil {
					return mcp.NewToolResultError(fmt.Sprintf("arguments must be an object, got %T", request.Params.Arguments)), nil
				}
				result, err := src.CallTool(ctx, name, args)
				if err != nil {
					logger.Warnf("Tool call %s failed: %v", name, err)
					return mcp.NewToolResultError(err.Error()), nil
				}
				return toSDKToolResult(result), nil
			},
		})
	}
	return sdkTools, nil
}

func toSDKToolResult(result *fuse.ToolResult) *mcp.CallToolResult {
	out := &mcp.CallToolResult{IsError: result.IsError}
	for _, c := range result.Content {
		switch c.Type {
		case "image":
			out.Content = append(out.Content, mcp.NewImageContent(c.Data, c.MimeType))
		case "audio":
			out.Content = append(out.Content, mcp.NewAudioContent(c.Data, c.MimeType))
		default:
			out.Content = append(out.Content, mcp.NewTextContent(c.Text))
		}
	}
	if result.StructuredContent != nil {
		out.StructuredContent = result.StructuredContent
	}
	if len(result.Meta) > 0 {
		out.Meta = &mcp.Meta{AdditionalFields: result.Meta}
	}
	return out
}

func toSDKResources(ctx context.Context, src *fuse.Server) ([]server.ServerResource, error) {
	resources, err := src.ListResources(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerating resources: %w", err)
	}

	sdkResources := make([]server.ServerResource, 0, len(resources))
	for _, res := range resources {
		uri := res.URI
		sdkResources = append(sdkResources, server.ServerResource{
			Resource: mcp.Resource{
				URI:         uri,
				Name:        res.Name,
				Description: res.Description,
				MIMEType:    res.MimeType,
			},
			Handler: func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
				contents, err := src.ReadResource(ctx, request.Params.URI)
				if err != nil {
					return nil, err
				}
				return toSDKResourceContents(request.Params.URI, contents), nil
			},
		})
	}
	return sdkResources, nil
}

func toSDKResourceContents(uri string, contents *fuse.ResourceContents) []mcp.ResourceContents {
	if isTextMime(contents.MimeType) {
		return []mcp.ResourceContents{mcp.TextResourceContents{
			URI:      uri,
			MIMEType: contents.MimeType,
			Text:     string(contents.Data),
		}}
	}
	return []mcp.ResourceContents{mcp.BlobResourceContents{
		URI:      uri,
		MIMEType: contents.MimeType,
		Blob:     base64.StdEncoding.EncodeToString(contents.Data),
	}}
}

func isTextMime(mimeType string) bool {
	switch {
	case mimeType == "", strings.HasPrefix(mimeType, "text/"):
		return true
	case mimeType == "application/json", strings.HasSuffix(mimeType, "+json"):
		return true
	case mimeType == "application/xml", strings.HasSuffix(mimeType, "+xml"):
		return true
	default:
		return false
	}
}

type sdkResourceTemplate struct {
	template mcp.ResourceTemplate
	handler  server.ResourceTemplateHandlerFunc
}

func toSDKResourceTemplates(ctx context.Context, src *fuse.Server) ([]sdkResourceTemplate, error) {
	templates, err := src.ListResourceTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerating resource templates: %w", err)
	}

	out := make([]sdkResourceTemplate, 0, len(templates))
	for _, tmpl := range templates {
		opts := []mcp.ResourceTemplateOption{}
		if tmpl.Description != "" {
			opts = append(opts, mcp.WithTemplateDescription(tmpl.Description))
		}
		if tmpl.MimeType != "" {
			opts = append(opts, mcp.WithTemplateMIMEType(tmpl.MimeType))
		}
		out = append(out, sdkResourceTemplate{
			template: mcp.NewResourceTemplate(tmpl.URITemplate, tmpl.Name, opts...),
			handler: func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
				contents, err := src.ReadResource(ctx, request.Params.URI)
				if err != nil {
					return nil, err
				}
				return toSDKResourceContents(request.Params.URI, contents), nil
			},
		})
	}
	return out, nil
}

func toSDKPrompts(ctx context.Context, src *fuse.Server) ([]server.ServerPrompt, error) {
	prompts, err := src.ListPrompts(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerating prompts: %w", err)
	}

	sdkPrompts := make([]server.ServerPrompt, 0, len(prompts))
	for _, prompt := range prompts {
		arguments := make([]mcp.PromptArgument, len(prompt.Arguments))
		for i, arg := range prompt.Arguments {
			arguments[i] = mcp.PromptArgument{
				Name:        arg.Name,
				Description: arg.Description,
				Required:    arg.Required,
			}
		}
		name := prompt.Name
		sdkPrompts = append(sdkPrompts, server.ServerPrompt{
			Prompt: mcp.Prompt{
				Name:        name,
				Description: prompt.Description,
				Arguments:   arguments,
			},
			Handler: func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
				result, err := src.GetPrompt(ctx, name, request.Params.Arguments)
				if err != nil {
					return nil, err
				}
				return toSDKPromptResult(result), nil
			},
		})
	}
	return sdkPrompts, nil
}

func toSDKPromptResult(result *fuse.PromptResult) *mcp.GetPromptResult {
	messages := make([]mcp.PromptMessage, len(result.Messages))
	for i, m := range result.Messages {
		messages[i] = mcp.PromptMessage{
			Role:    mcp.Role(m.Role),
			Content: mcp.NewTextContent(m.Content),
		}
	}
	return &mcp.GetPromptResult{
		Description: result.Description,
		Messages:    messages,
	}
}
