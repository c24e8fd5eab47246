package graph

import "strings"

// negationPrefixes lists the controlled-vocabulary negation forms a
// predicate may carry. A negated predicate shares its "axis" with its
// affirmative counterpart for conflict detection (§4.5: "opposing
// directionality on the same predicate").
var negationPrefixes = []string{"does_not_", "not_"}

// predicateAxis returns the base predicate (with any negation prefix
// stripped) and the direction sign: +1 for the affirmative form, -1 for
// the negated form. A "does_not_" form gives its leading verb back the
// third-person "s", so "does_not_inhibit" shares the axis of "inhibits".
func predicateAxis(predicate string) (axis string, sign int) {
	for _, prefix := range negationPrefixes {
		if strings.HasPrefix(predicate, prefix) {
			base := strings.TrimPrefix(predicate, prefix)
			if prefix == "does_not_" {
				if i := strings.IndexByte(base, '_'); i >= 0 {
					base = base[:i] + "s" + base[i:]
				} else {
					base += "s"
				}
			}
			return base, -1
		}
	}
	return predicate, 1
}
