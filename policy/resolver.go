package policy

// Resolver holds a set of route groups and resolves an HTTP path or a full
// gRPC method name to the best-matching group and its associated policy.
// A Resolver is immutable once built and safe for concurrent use.
type Resolver struct {
	groups []*GroupBuilder
}

// NewResolver creates a Resolver from the supplied group builders.
func NewResolver(groups ...*GroupBuilder) *Resolver {
	return &Resolver{groups: groups}
}

// Resolve finds the best-matching group for target.
//
// Priority rules:
//   - Exact matches beat prefix matches, which beat regex matches.
//   - Among matches of the same kind the longer match wins.
//   - When two matches have equal kind and length the group that was
//     registered first (stable order) wins.
//
// If no group matches, ok is false.
func (res *Resolver) Resolve(target string) (groupName string, pol *Policy, ok bool) {
	if res == nil {
		return "", nil, false
	}
	var best hit
	var winner *GroupBuilder
	for _, g := range res.groups {
		for i := range g.rules {
			if h := g.rules[i].match(target); h.beats(best) {
				best, winner = h, g
			}
		}
	}
	if winner == nil {
		return "", nil, false
	}
	return winner.name, winner.policy, true
}

// Len returns the number of groups.
func (res *Resolver) Len() int {
	if res == nil {
		return 0
	}
	return len(res.groups)
}
