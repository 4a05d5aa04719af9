package delta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Format holds the formatting attributes of a span, like {"bold": true}.
//
// A nil Format means "no formatting". When a Format is used as a patch, a nil
// value for a key removes that key.
type Format map[string]any

// Clone returns a shallow copy of f, or nil if f is empty.
func (f Format) Clone() Format {
	if len(f) == 0 {
		return nil
	}
	g := make(Format, len(f))
	for k, v := range f {
		g[k] = v
	}
	return g
}

// Equal reports whether both formats hold the same keys with equal values.
func (f Format) Equal(g Format) bool {
	if len(f) != len(g) {
		return false
	}
	for k, v := range f {
		w, ok := g[k]
		if !ok || !sameValue(v, w) {
			return false
		}
	}
	return true
}

// Overlays patch on top of base. Null entries delete keys, unless keepNull is
// set, in which case they are kept so the result is still a valid patch.
func patchFormat(base, patch Format, keepNull bool) Format {
	if len(patch) == 0 {
		return base
	}
	res := make(Format, len(base)+len(patch))
	for k, v := range base {
		res[k] = v
	}
	for k, v := range patch {
		if v == nil && !keepNull {
			delete(res, k)
		} else {
			res[k] = v
		}
	}
	return res.Clone()
}

// Returns the patch that turns from into to.
func formatPatch(from, to Format) Format {
	patch := make(Format)
	for k, v := range to {
		if w, ok := from[k]; !ok || !sameValue(v, w) {
			patch[k] = v
		}
	}
	for k := range from {
		if _, ok := to[k]; !ok {
			patch[k] = nil
		}
	}
	return patch.Clone()
}

// Returns the keys of f that are also in g.
func sharedKeys(f, g Format) []string {
	var keys []string
	for k := range f {
		if _, ok := g[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// +-------------+
// | Attribution |
// +-------------+

// Attribution is provenance metadata attached to an operation. It never takes
// part in fingerprints.
type Attribution struct {
	Insert   []string            `json:"insert,omitempty"`
	InsertAt int64               `json:"insertAt,omitempty"`
	Delete   []string            `json:"delete,omitempty"`
	DeleteAt int64               `json:"deleteAt,omitempty"`
	Format   map[string][]string `json:"format,omitempty"`
	FormatAt int64               `json:"formatAt,omitempty"`
}

// IsZero reports whether a carries no information. A nil attribution is zero.
func (a *Attribution) IsZero() bool {
	return a == nil ||
		(len(a.Insert) == 0 && a.InsertAt == 0 &&
			len(a.Delete) == 0 && a.DeleteAt == 0 &&
			len(a.Format) == 0 && a.FormatAt == 0)
}

// Clone returns a deep copy of a, or nil if a is zero.
func (a *Attribution) Clone() *Attribution {
	if a.IsZero() {
		return nil
	}
	b := *a
	b.Insert = cloneStrings(a.Insert)
	b.Delete = cloneStrings(a.Delete)
	if len(a.Format) > 0 {
		b.Format = make(map[string][]string, len(a.Format))
		for k, v := range a.Format {
			b.Format[k] = cloneStrings(v)
		}
	}
	return &b
}

// Equal reports whether both attributions carry the same information.
func (a *Attribution) Equal(b *Attribution) bool {
	if a.IsZero() || b.IsZero() {
		return a.IsZero() == b.IsZero()
	}
	return bytes.Equal(canonical(a), canonical(b))
}

// Overlays the non-empty fields of patch on top of base.
func mergeAttribution(base, patch *Attribution) *Attribution {
	if patch.IsZero() {
		return base.Clone()
	}
	if base.IsZero() {
		return patch.Clone()
	}
	res := base.Clone()
	p := patch.Clone()
	if len(p.Insert) > 0 {
		res.Insert = p.Insert
	}
	if p.InsertAt != 0 {
		res.InsertAt = p.InsertAt
	}
	if len(p.Delete) > 0 {
		res.Delete = p.Delete
	}
	if p.DeleteAt != 0 {
		res.DeleteAt = p.DeleteAt
	}
	if len(p.Format) > 0 {
		if res.Format == nil {
			res.Format = make(map[string][]string, len(p.Format))
		}
		for k, v := range p.Format {
			res.Format[k] = v
		}
	}
	if p.FormatAt != 0 {
		res.FormatAt = p.FormatAt
	}
	return res
}

// Sets one field by its JSON name; a nil value clears it.
func (a *Attribution) set(key string, val any) error {
	switch key {
	case "insert", "delete":
		ss, err := toStrings(val)
		if err != nil {
			return fmt.Errorf("attribution %q: %w", key, err)
		}
		if key == "insert" {
			a.Insert = ss
		} else {
			a.Delete = ss
		}
	case "insertAt", "deleteAt", "formatAt":
		var n int64
		if val != nil {
			i, err := toInt(val)
			if err != nil {
				return fmt.Errorf("attribution %q: %w", key, err)
			}
			n = int64(i)
		}
		switch key {
		case "insertAt":
			a.InsertAt = n
		case "deleteAt":
			a.DeleteAt = n
		default:
			a.FormatAt = n
		}
	case "format":
		switch v := val.(type) {
		case nil:
			a.Format = nil
		case map[string][]string:
			a.Format = v
		case map[string]any:
			a.Format = make(map[string][]string, len(v))
			for k, x := range v {
				ss, err := toStrings(x)
				if err != nil {
					return fmt.Errorf("attribution format %q: %w", k, err)
				}
				a.Format[k] = ss
			}
		default:
			return fmt.Errorf("attribution %q: unexpected %T", key, val)
		}
	default:
		return fmt.Errorf("unknown attribution key %q", key)
	}
	return nil
}

func cloneStrings(ss []string) []string {
	if len(ss) == 0 {
		return nil
	}
	return append([]string(nil), ss...)
}

// +--------+
// | Values |
// +--------+

// Returns a deterministic byte form of v: embedded deltas are represented by
// their fingerprint, everything else by its JSON encoding (map keys sorted).
func canonical(v any) []byte {
	switch v := v.(type) {
	case nil:
		return []byte("null")
	case *Delta:
		return []byte("delta:" + v.Fingerprint())
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return []byte(fmt.Sprintf("%T:%#v", v, v))
	}
	return bs
}

func sameValue(a, b any) bool {
	if da, ok := a.(*Delta); ok {
		db, ok := b.(*Delta)
		return ok && da.Equal(db)
	}
	if _, ok := b.(*Delta); ok {
		return false
	}
	if bytes.Equal(canonical(a), canonical(b)) {
		return true
	}
	return reflect.DeepEqual(a, b)
}

func toInt(v any) (int, error) {
	switch v := v.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		return int(n), err
	}
	return 0, fmt.Errorf("unexpected %T, want a number", v)
}

func toStrings(v any) ([]string, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return cloneStrings(v), nil
	case []any:
		ss := make([]string, len(v))
		for i, x := range v {
			s, ok := x.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected %T, want a string", x)
			}
			ss[i] = s
		}
		return ss, nil
	}
	return nil, fmt.Errorf("unexpected %T, want a list of strings", v)
}
