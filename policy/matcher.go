package policy

import "strings"

// hit describes how a rule matched a target. A zero hit is no match.
type hit struct {
	kind   matchKind
	length int
	ok     bool
}

// beats reports whether h should replace best. Ties keep best, so the group
// registered first wins.
func (h hit) beats(best hit) bool {
	switch {
	case !h.ok:
		return false
	case !best.ok:
		return true
	case h.kind != best.kind:
		return h.kind < best.kind
	default:
		return h.length > best.length
	}
}

// match tests target, an HTTP path or a full gRPC method, against r. Regex
// hits are scored by the length of the leftmost match.
func (r *rule) match(target string) hit {
	n := -1
	switch r.kind {
	case kindExact:
		if target == r.pattern {
			n = len(target)
		}
	case kindPrefix:
		if strings.HasPrefix(target, r.pattern) {
			n = len(r.pattern)
		}
	case kindRegex:
		if loc := r.re.FindStringIndex(target); loc != nil {
			n = loc[1] - loc[0]
		}
	}
	if n < 0 {
		return hit{}
	}
	return hit{kind: r.kind, length: n, ok: true}
}
