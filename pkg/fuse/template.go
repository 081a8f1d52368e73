// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"regexp"
	"strings"
	"sync"
)

// placeholderRe matches {param} placeholders in a URI template.
var placeholderRe = regexp.MustCompile(`\{([^/{}]+)\}`)

// templateCache caches compiled URI-template regexps. Templates are
// registered during setup and matched on every read, so compilation is
// amortized away.
var templateCache sync.Map // template string -> *compiledTemplate

type compiledTemplate struct {
	re     *regexp.Regexp
	params []string
}

func compileURITemplate(template string) (*compiledTemplate, bool) {
	if cached, ok := templateCache.Load(template); ok {
		ct := cached.(*compiledTemplate)
		return ct, ct != nil
	}

	var (
		pattern strings.Builder
		params  []string
		last    int
	)
	pattern.WriteString("^")
	for _, loc := range placeholderRe.FindAllStringSubmatchIndex(template, -1) {
		pattern.WriteString(regexp.QuoteMeta(template[last:loc[0]]))
		// One placeholder captures a single path segment.
		pattern.WriteString(`([^/]+)`)
		params = append(params, template[loc[2]:loc[3]])
		last = loc[1]
	}
	pattern.WriteString(regexp.QuoteMeta(template[last:]))
	pattern.WriteString("$")

	re, err := regexp.Compile(pattern.String())
	if err != nil {
		templateCache.Store(template, (*compiledTemplate)(nil))
		return nil, false
	}
	ct := &compiledTemplate{re: re, params: params}
	templateCache.Store(template, ct)
	return ct, true
}

// expandURITemplate substitutes {param} placeholders with the given values.
// Placeholders without a value are left intact.
func expandURITemplate(template string, params map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		if v, ok := params[name]; ok {
			return v
		}
		return match
	})
}

// matchURITemplate matches a concrete uri against a {param}-style URI
// template, returning the extracted parameter values.
func matchURITemplate(template, uri string) (map[string]string, bool) {
	ct, ok := compileURITemplate(template)
	if !ok {
		return nil, false
	}
	m := ct.re.FindStringSubmatch(uri)
	if m == nil {
		return nil, false
	}
	params := make(map[string]string, len(ct.params))
	for i, name := range ct.params {
		params[name] = m[i+1]
	}
	return params, true
}
