package mcp

import (
	"fmt"
	"strings"
)

// ParsedURI is a URI split into its scheme and `/`-delimited segments, per
// spec.md §3: "scheme://[host/]segment(/segment)*".
type ParsedURI struct {
	Scheme   string
	Segments []string
}

// ParseURI splits raw into scheme and segments. The scheme separator is the
// first "://"; everything after it is split on "/".
func ParseURI(raw string) (ParsedURI, error) {
	idx := strings.Index(raw, "://")
	if idx < 0 {
		return ParsedURI{}, fmt.Errorf("uri missing scheme separator: %q", raw)
	}
	scheme := raw[:idx]
	rest := raw[idx+3:]
	var segments []string
	if rest != "" {
		segments = strings.Split(rest, "/")
	}
	return ParsedURI{Scheme: scheme, Segments: segments}, nil
}

func (p ParsedURI) String() string {
	return p.Scheme + "://" + strings.Join(p.Segments, "/")
}

type templateSegmentKind int

const (
	segmentLiteral templateSegmentKind = iota
	segmentPlaceholder
)

type templateSegment struct {
	kind    templateSegmentKind
	literal string // when kind == segmentLiteral
	name    string // when kind == segmentPlaceholder
}

// parsedURITemplate is a resource URI template compiled into a scheme plus a
// sequence of literal/placeholder segments, matched by linear scan per
// spec.md §4.4 and §9.
type parsedURITemplate struct {
	scheme   string
	segments []templateSegment
}

// ParseURITemplate compiles a template string like "res://{name}" or
// "file://workspace/{path}" into its matchable form.
func ParseURITemplate(template string) (parsedURITemplate, error) {
	idx := strings.Index(template, "://")
	if idx < 0 {
		return parsedURITemplate{}, fmt.Errorf("uri template missing scheme separator: %q", template)
	}
	scheme := template[:idx]
	rest := template[idx+3:]

	var raw []string
	if rest != "" {
		raw = strings.Split(rest, "/")
	}

	segments := make([]templateSegment, 0, len(raw))
	for _, part := range raw {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") && len(part) > 2 {
			segments = append(segments, templateSegment{
				kind: segmentPlaceholder,
				name: part[1 : len(part)-1],
			})
			continue
		}
		segments = append(segments, templateSegment{kind: segmentLiteral, literal: part})
	}

	return parsedURITemplate{scheme: scheme, segments: segments}, nil
}

// Match reports whether candidate agrees with this template's scheme and
// segment count, and whose literal segments equal the candidate's
// corresponding segments. On a match it returns the placeholder bindings,
// keyed by placeholder name.
func (t parsedURITemplate) Match(candidate ParsedURI) (map[string]string, bool) {
	if candidate.Scheme != t.scheme {
		return nil, false
	}
	if len(candidate.Segments) != len(t.segments) {
		return nil, false
	}

	bindings := make(map[string]string, len(t.segments))
	for i, seg := range t.segments {
		value := candidate.Segments[i]
		switch seg.kind {
		case segmentLiteral:
			if seg.literal != value {
				return nil, false
			}
		case segmentPlaceholder:
			bindings[seg.name] = value
		}
	}
	return bindings, true
}
