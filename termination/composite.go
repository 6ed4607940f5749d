package termination

import (
	"fmt"
	"strings"
)

// And is met only if every sub-condition independently reports met,
// short-circuiting on the first unmet one. An empty And is vacuously met.
func And(conds ...Condition) Condition {
	return &condition{
		desc: compositeDesc("and", conds),
		met: func(s *State) bool {
			for _, c := range conds {
				if !c.Met(s) {
					return false
				}
			}
			return true
		},
	}
}

// Or is met if any sub-condition reports met, short-circuiting on the
// first met one. An empty Or is never met.
func Or(conds ...Condition) Condition {
	return &condition{
		desc: compositeDesc("or", conds),
		met: func(s *State) bool {
			for _, c := range conds {
				if c.Met(s) {
					return true
				}
			}
			return false
		},
	}
}

// Not inverts a single condition's verdict.
func Not(c Condition) Condition {
	return &condition{
		desc: fmt.Sprintf("not(%s)", c),
		met:  func(s *State) bool { return !c.Met(s) },
	}
}

func compositeDesc(op string, conds []Condition) string {
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%s(%s)", op, strings.Join(parts, ", "))
}
