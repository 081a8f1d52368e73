// SPDX-License-Identifier: Apache-2.0

// Package openapi turns an OpenAPI 3 description into a composable tool
// server: each operation is extracted into the mapper's normalized form,
// classified by route maps and registered as a synthesized component.
package openapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/toolfuse/toolfuse/pkg/fuse"
	"github.com/toolfuse/toolfuse/pkg/fuse/mapper"
	"github.com/toolfuse/toolfuse/pkg/logger"
)

// Load parses an OpenAPI 3 document from raw bytes (JSON or YAML).
func Load(data []byte) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing OpenAPI document: %v", fuse.ErrInvalidInput, err)
	}
	return doc, nil
}

// ExtractOperations flattens the document's paths into the mapper's
// normalized operation records, deterministically ordered by path then
// method.
func ExtractOperations(doc *openapi3.T) []mapper.Operation {
	if doc.Paths == nil {
		return nil
	}

	pathMap := doc.Paths.Map()
	paths := make([]string, 0, len(pathMap))
	for p := range pathMap {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var out []mapper.Operation
	for _, path := range paths {
		item := pathMap[path]
		opMap := item.Operations()
		methods := make([]string, 0, len(opMap))
		for m := range opMap {
			methods = append(methods, m)
		}
		sort.Strings(methods)

		for _, method := range methods {
			out = append(out, extractOperation(method, path, item, opMap[method]))
		}
	}
	return out
}

func extractOperation(method, path string, item *openapi3.PathItem, op *openapi3.Operation) mapper.Operation {
	operationID := op.OperationID
	if operationID == "" {
		operationID = synthesizeOperationID(method, path)
	}

	extracted := mapper.Operation{
		Method:      method,
		Path:        path,
		OperationID: operationID,
		Summary:     op.Summary,
		Description: op.Description,
		Tags:        op.Tags,
	}

	// Path-level parameters apply to every operation on the path;
	// operation-level ones follow and may repeat them.
	seen := make(map[string]bool)
	for _, params := range []openapi3.Parameters{item.Parameters, op.Parameters} {
		for _, ref := range params {
			p := ref.Value
			if p == nil || seen[p.In+"/"+p.Name] {
				continue
			}
			seen[p.In+"/"+p.Name] = true
			param := mapper.Param{
				Name:        p.Name,
				Description: p.Description,
				Schema:      schemaToMap(p.Schema),
				Required:    p.Required,
			}
			switch p.In {
			case openapi3.ParameterInPath:
				extracted.PathParams = append(extracted.PathParams, param)
			case openapi3.ParameterInQuery:
				extracted.QueryParams = append(extracted.QueryParams, param)
			}
		}
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		if media, ok := op.RequestBody.Value.Content["application/json"]; ok {
			extracted.RequestBody = &mapper.BodySchema{
				ContentType: "application/json",
				Schema:      schemaToMap(media.Schema),
				Required:    op.RequestBody.Value.Required,
			}
		}
	}
	return extracted
}

// synthesizeOperationID derives a stable component name for operations the
// document left unnamed, e.g. "get_users__id_" for GET /users/{id}.
func synthesizeOperationID(method, path string) string {
	sanitized := strings.NewReplacer("/", "_", "{", "_", "}", "_").Replace(strings.Trim(path, "/"))
	return strings.ToLower(method + "_" + sanitized)
}

// schemaToMap converts a parsed schema back to its plain JSON form, which is
// what synthesized input schemas are assembled from.
func schemaToMap(ref *openapi3.SchemaRef) map[string]any {
	if ref == nil || ref.Value == nil {
		return nil
	}
	raw, err := json.Marshal(ref.Value)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

type serverConfig struct {
	client      *http.Client
	request     mapper.RequestFunc
	routeMaps   []mapper.RouteMap
	routeMapFn  mapper.RouteMapFn
	componentFn mapper.ComponentFn
	includeTags []string
	serverOpts  []fuse.ServerOption
}

// Option configures NewServer.
type Option func(*serverConfig)

// WithHTTPClient sets the HTTP client backing the synthesized components.
func WithHTTPClient(client *http.Client) Option {
	return func(c *serverConfig) { c.client = client }
}

// WithRequestFunc replaces the HTTP calling capability entirely; baseURL is
// ignored when set.
func WithRequestFunc(fn mapper.RequestFunc) Option {
	return func(c *serverConfig) { c.request = fn }
}

// WithRouteMaps sets the classification rules, evaluated before the
// defaults.
func WithRouteMaps(rules ...mapper.RouteMap) Option {
	return func(c *serverConfig) { c.routeMaps = rules }
}

// WithRouteMapFn sets the per-operation kind override hook.
func WithRouteMapFn(fn mapper.RouteMapFn) Option {
	return func(c *serverConfig) { c.routeMapFn = fn }
}

// WithComponentFn sets the post-synthesis component hook.
func WithComponentFn(fn mapper.ComponentFn) Option {
	return func(c *serverConfig) { c.componentFn = fn }
}

// WithIncludeTags restricts extraction to operations carrying at least one
// of the given tags.
func WithIncludeTags(tags ...string) Option {
	return func(c *serverConfig) { c.includeTags = tags }
}

// WithServerOptions passes options through to the underlying fuse server.
func WithServerOptions(opts ...fuse.ServerOption) Option {
	return func(c *serverConfig) { c.serverOpts = opts }
}

// NewServer builds a tool server from an OpenAPI document, with every
// surviving operation registered as a synthesized component calling baseURL.
func NewServer(name string, specData []byte, baseURL string, opts ...Option) (*fuse.Server, error) {
	cfg := serverConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	doc, err := Load(specData)
	if err != nil {
		return nil, err
	}
	ops := ExtractOperations(doc)
	if len(cfg.includeTags) > 0 {
		ops = filterByTags(ops, cfg.includeTags)
	}

	request := cfg.request
	if request == nil {
		request = mapper.NewHTTPRequester(cfg.client, baseURL)
	}

	srv := fuse.NewServer(name, cfg.serverOpts...)
	m := mapper.New(request,
		mapper.WithRouteMaps(cfg.routeMaps...),
		mapper.WithRouteMapFn(cfg.routeMapFn),
		mapper.WithComponentFn(cfg.componentFn),
	)
	if err := m.Apply(srv, ops); err != nil {
		return nil, err
	}
	logger.Infof("Built server %s from OpenAPI document (%d operations)", name, len(ops))
	return srv, nil
}

func filterByTags(ops []mapper.Operation, include []string) []mapper.Operation {
	want := make(map[string]bool, len(include))
	for _, t := range include {
		want[t] = true
	}
	out := make([]mapper.Operation, 0, len(ops))
	for _, op := range ops {
		for _, t := range op.Tags {
			if want[t] {
				out = append(out, op)
				break
			}
		}
	}
	return out
}
