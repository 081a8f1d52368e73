// SPDX-License-Identifier: Apache-2.0

// Package uriprefix implements namespace prefixing for resource URIs.
//
// Two lexical encodings coexist for backward compatibility:
//
//	path (current):     scheme://prefix/path
//	protocol (legacy):  prefix+scheme://path
//
// Both encodings round-trip: Remove(Add(uri, p, f), p, f) == uri for every
// well-formed uri, non-empty prefix and format f. Adding in one format and
// removing in the other is a format error, not an implicit conversion.
package uriprefix

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrFormat indicates a malformed resource URI or a prefix operation applied
// to a URI that does not carry the expected prefix in the expected position.
// Always a local precondition violation; never retried.
var ErrFormat = errors.New("invalid resource URI format")

// Format selects the prefix encoding scheme.
type Format string

const (
	// FormatPath is the current encoding: scheme://prefix/path.
	FormatPath Format = "path"

	// FormatProtocol is the legacy encoding: prefix+scheme://path.
	FormatProtocol Format = "protocol"

	// DefaultFormat is used when callers do not care about the encoding.
	DefaultFormat = FormatPath
)

// uriRe splits a URI into scheme and path. The scheme part is deliberately
// permissive about "+" and "_" so that legacy-prefixed URIs
// (prefix+scheme://path, with prefixes like "team_a") still parse as
// structurally valid.
var uriRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9+.\-_]*)://(.*)$`)

// split parses uri into (scheme, path) or fails with ErrFormat.
func split(uri string) (string, string, error) {
	m := uriRe.FindStringSubmatch(uri)
	if m == nil {
		return "", "", fmt.Errorf("%w: %q does not match scheme://path", ErrFormat, uri)
	}
	return m[1], m[2], nil
}

// Add inserts prefix into uri using the given format.
//
// Path format places the prefix as the first path segment:
// "resource://data" with prefix "p" becomes "resource://p/data". A path that
// is itself absolute keeps its leading slash, so "resource:///abs" becomes
// "resource://p//abs" with no segment collapsing.
//
// Protocol format prepends "prefix+" to the scheme:
// "resource://data" becomes "p+resource://data".
//
// An empty prefix returns uri unchanged (after validating its structure).
func Add(uri, prefix string, format Format) (string, error) {
	scheme, path, err := split(uri)
	if err != nil {
		return "", err
	}
	if prefix == "" {
		return uri, nil
	}
	switch format {
	case FormatPath:
		return fmt.Sprintf("%s://%s/%s", scheme, prefix, path), nil
	case FormatProtocol:
		return fmt.Sprintf("%s+%s://%s", prefix, scheme, path), nil
	default:
		return "", fmt.Errorf("%w: unknown prefix format %q", ErrFormat, format)
	}
}

// Remove strips prefix from uri, inverting Add for the same format. It fails
// with ErrFormat when uri is structurally invalid or does not carry the
// expected prefix in the expected position.
func Remove(uri, prefix string, format Format) (string, error) {
	scheme, path, err := split(uri)
	if err != nil {
		return "", err
	}
	if prefix == "" {
		return uri, nil
	}
	switch format {
	case FormatPath:
		rest, ok := strings.CutPrefix(path, prefix+"/")
		if !ok {
			return "", fmt.Errorf("%w: %q does not carry path prefix %q", ErrFormat, uri, prefix)
		}
		return fmt.Sprintf("%s://%s", scheme, rest), nil
	case FormatProtocol:
		rest, ok := strings.CutPrefix(scheme, prefix+"+")
		if !ok || rest == "" {
			return "", fmt.Errorf("%w: %q does not carry protocol prefix %q", ErrFormat, uri, prefix)
		}
		return fmt.Sprintf("%s://%s", rest, path), nil
	default:
		return "", fmt.Errorf("%w: unknown prefix format %q", ErrFormat, format)
	}
}

// Has reports whether uri carries prefix in the given format. A well-formed
// URI that simply lacks the prefix reports false without error; a
// structurally invalid URI still fails with ErrFormat.
func Has(uri, prefix string, format Format) (bool, error) {
	scheme, path, err := split(uri)
	if err != nil {
		return false, err
	}
	if prefix == "" {
		return false, nil
	}
	switch format {
	case FormatPath:
		return strings.HasPrefix(path, prefix+"/"), nil
	case FormatProtocol:
		rest, ok := strings.CutPrefix(scheme, prefix+"+")
		return ok && rest != "", nil
	default:
		return false, fmt.Errorf("%w: unknown prefix format %q", ErrFormat, format)
	}
}
