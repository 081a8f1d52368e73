// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"context"
	"fmt"

	"github.com/toolfuse/toolfuse/pkg/fuse/uriprefix"
	"github.com/toolfuse/toolfuse/pkg/logger"
)

// ImportServer copies the child's composed view (own components plus
// whatever its mounts expose right now) into this server's registry, with
// prefix applied using the same rules as a prefixed mount. The copy is
// eager and static: components the child adds or removes afterwards do not
// affect it. The copied handlers still execute the child's behavior as
// captured at import time.
//
// Name and URI collisions with already-registered components follow this
// server's duplicate policy; under DuplicateError the import stops at the
// first conflict, leaving earlier copies in place.
func (s *Server) ImportServer(ctx context.Context, child *Server, prefix string) error {
	tools, err := child.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("importing tools from %s: %w", child.Name(), err)
	}
	for _, t := range tools {
		c := *t
		if prefix != "" {
			c.Name = prefix + "_" + c.Name
		}
		if err := s.registry.AddTool(&c); err != nil {
			return err
		}
	}

	resources, err := child.ListResources(ctx)
	if err != nil {
		return fmt.Errorf("importing resources from %s: %w", child.Name(), err)
	}
	for _, r := range resources {
		c := *r
		if prefix != "" {
			prefixed, err := uriprefix.Add(c.URI, prefix, uriprefix.FormatPath)
			if err != nil {
				return fmt.Errorf("importing resource %q from %s: %w", c.URI, child.Name(), err)
			}
			c.URI = prefixed
		}
		if err := s.registry.AddResource(&c); err != nil {
			return err
		}
	}

	templates, err := child.ListResourceTemplates(ctx)
	if err != nil {
		return fmt.Errorf("importing resource templates from %s: %w", child.Name(), err)
	}
	for _, t := range templates {
		c := *t
		if prefix != "" {
			prefixed, err := uriprefix.Add(c.URITemplate, prefix, uriprefix.FormatPath)
			if err != nil {
				return fmt.Errorf("importing resource template %q from %s: %w", c.URITemplate, child.Name(), err)
			}
			c.URITemplate = prefixed
		}
		if err := s.registry.AddTemplate(&c); err != nil {
			return err
		}
	}

	prompts, err := child.ListPrompts(ctx)
	if err != nil {
		return fmt.Errorf("importing prompts from %s: %w", child.Name(), err)
	}
	for _, p := range prompts {
		c := *p
		if prefix != "" {
			c.Name = prefix + "_" + c.Name
		}
		if err := s.registry.AddPrompt(&c); err != nil {
			return err
		}
	}

	logger.Debugf("Imported %d tools, %d resources, %d templates, %d prompts from %s into %s (prefix=%q)",
		len(tools), len(resources), len(templates), len(prompts), child.Name(), s.name, prefix)
	return nil
}
