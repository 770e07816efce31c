// Package record holds the input data model: records as decoded JSON
// objects, dotted-path resolution into them, and discovery of the numeric
// leaf paths a dataset exposes.
package record

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Record is one element of the input sequence, an arbitrarily nested
// object of maps, slices and scalar leaves as produced by encoding/json.
type Record map[string]any

// PathDescriptor describes one discovered leaf position.
type PathDescriptor struct {
	Path     string
	Type     string // "number", "string", "boolean", "object"
	Coverage float64
	Sample   any
	IsArray  bool
}

const (
	// maxSampled bounds how many records are probed for coverage.
	maxSampled = 20
	// maxDepth bounds recursion into nested objects.
	maxDepth = 5
	// minCoverage is the floor below which a path is dropped.
	minCoverage = 0.1
)

var log = logrus.WithFields(logrus.Fields{"system": "record"})

// Resolve walks rec along the dot-delimited path. It returns false the
// moment any intermediate segment is missing or nil.
func Resolve(rec Record, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var cur any = map[string]any(rec)
	for _, seg := range strings.Split(path, ".") {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok || next == nil {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			if v[idx] == nil {
				return nil, false
			}
			cur = v[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// ResolveNumber resolves a path and parses the leaf as a float. Numeric
// strings are accepted; anything else reports false.
func ResolveNumber(rec Record, path string) (float64, bool) {
	v, ok := Resolve(rec, path)
	if !ok {
		return 0, false
	}
	return asNumber(v)
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case []any:
		// Arrays of primitives are sampled through their first element,
		// mirroring discovery.
		if len(n) == 0 {
			return 0, false
		}
		return asNumber(n[0])
	default:
		return 0, false
	}
}

// Discover enumerates leaf paths from the first record and probes up to
// maxSampled records to compute coverage per path. Paths below the
// coverage floor are dropped. An empty input yields an empty slice.
func Discover(records []Record) []PathDescriptor {
	if len(records) == 0 {
		return nil
	}
	leaves := map[string]PathDescriptor{}
	collectLeaves(map[string]any(records[0]), "", 0, leaves)
	if len(leaves) == 0 {
		return nil
	}

	sampled := records
	if len(sampled) > maxSampled {
		sampled = sampled[:maxSampled]
	}

	out := make([]PathDescriptor, 0, len(leaves))
	dropped := 0
	for _, desc := range leaves {
		hits := 0
		for _, rec := range sampled {
			if _, ok := Resolve(rec, desc.Path); ok {
				hits++
			}
		}
		desc.Coverage = float64(hits) / float64(len(sampled))
		if desc.Coverage < minCoverage {
			dropped++
			continue
		}
		out = append(out, desc)
	}
	if dropped > 0 {
		log.WithFields(logrus.Fields{"dropped": dropped, "kept": len(out)}).
			Debug("paths below coverage floor discarded")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// collectLeaves descends into obj recording one descriptor per leaf. A
// slice of primitives yields a single descriptor flagged IsArray; a slice
// of objects is sampled through its first element.
func collectLeaves(v any, prefix string, depth int, out map[string]PathDescriptor) {
	if depth > maxDepth {
		return
	}
	switch val := v.(type) {
	case map[string]any:
		for key, child := range val {
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			collectLeaves(child, path, depth+1, out)
		}
	case []any:
		if len(val) == 0 {
			return
		}
		switch val[0].(type) {
		case map[string]any, []any:
			collectLeaves(val[0], prefix+".0", depth+1, out)
		default:
			if prefix == "" {
				return
			}
			out[prefix] = PathDescriptor{
				Path:    prefix,
				Type:    typeName(val[0]),
				Sample:  val[0],
				IsArray: true,
			}
		}
	default:
		if prefix == "" || v == nil {
			return
		}
		out[prefix] = PathDescriptor{Path: prefix, Type: typeName(v), Sample: v}
	}
}

func typeName(v any) string {
	switch v.(type) {
	case float64, float32, int, int64:
		return "number"
	case string:
		if _, ok := asNumber(v); ok {
			return "number"
		}
		return "string"
	case bool:
		return "boolean"
	default:
		return "object"
	}
}

// NumericPaths filters descriptors down to the sonifiable ones.
func NumericPaths(descs []PathDescriptor) []PathDescriptor {
	out := make([]PathDescriptor, 0, len(descs))
	for _, d := range descs {
		if d.Type == "number" {
			out = append(out, d)
		}
	}
	return out
}
