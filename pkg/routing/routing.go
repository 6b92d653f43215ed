// Package routing classifies request paths and maps each class to its
// caching strategy. Classification is an ordered rule table evaluated
// first-match-wins, so precedence is explicit and testable in isolation.
package routing

import (
	"path"
	"strings"
)

// Class is the category a request path is sorted into before
// strategy selection.
type Class string

const (
	ClassStatic  Class = "static"
	ClassDynamic Class = "dynamic"
	ClassAPI     Class = "api"
	ClassDefault Class = "default"
)

// Strategy is the retrieval/update policy applied to a request.
type Strategy string

const (
	CacheFirst           Strategy = "cache-first"
	NetworkFirst         Strategy = "network-first"
	StaleWhileRevalidate Strategy = "stale-while-revalidate"
)

// Strategy returns the policy for a class.
func (c Class) Strategy() Strategy {
	switch c {
	case ClassStatic:
		return CacheFirst
	case ClassAPI:
		return StaleWhileRevalidate
	default:
		return NetworkFirst
	}
}

var staticExtensions = map[string]struct{}{
	".css": {}, ".js": {}, ".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {},
	".ico": {}, ".svg": {}, ".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {},
}

type rule struct {
	class Class
	match func(path string) bool
}

// Table is an ordered list of classification rules.
type Table struct {
	rules []rule
}

// NewTable builds the rule table for the given API and large-media prefixes.
func NewTable(apiPrefix, mediaPrefix string) *Table {
	return &Table{
		rules: []rule{
			{ClassStatic, isStaticAsset},
			{ClassDynamic, func(p string) bool {
				return isDynamicAsset(p, apiPrefix, mediaPrefix)
			}},
			{ClassAPI, func(p string) bool {
				return strings.HasPrefix(p, apiPrefix)
			}},
		},
	}
}

// Classify returns the class of a request path.
// Rules are checked in order; the first match wins.
func (t *Table) Classify(requestPath string) Class {
	for _, r := range t.rules {
		if r.match(requestPath) {
			return r.class
		}
	}
	return ClassDefault
}

func isStaticAsset(p string) bool {
	if p == "/" {
		return true
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == ".html" || ext == ".htm" {
		return true
	}
	_, ok := staticExtensions[ext]
	return ok
}

// isDynamicAsset matches large media and user content.
// The "api" and "user-content" checks are deliberately loose substring
// matches (so e.g. /apiary/ classifies as dynamic), except that paths under
// the API prefix are left for the api rule.
func isDynamicAsset(p, apiPrefix, mediaPrefix string) bool {
	if strings.HasPrefix(p, mediaPrefix) {
		return true
	}
	if strings.Contains(p, "user-content") {
		return true
	}
	return strings.Contains(p, "api") && !strings.HasPrefix(p, apiPrefix)
}
