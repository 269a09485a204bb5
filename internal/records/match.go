// Search comparison between decoded values and query values.

package records

import (
	"reflect"
	"strings"
)

// Matches reports whether a decoded field value satisfies a query value.
//
//   - string and string: case-insensitive substring of actual
//   - number and number: numeric equality
//   - bool and bool: equality
//   - string actual and number query: the string equals the number's
//     canonical decimal form
//   - anything else: structural equality
func Matches(actual, query any) bool {
	switch a := actual.(type) {
	case string:
		if q, ok := query.(string); ok {
			return strings.Contains(strings.ToLower(a), strings.ToLower(q))
		}
		if q, ok := toNumber(query); ok {
			return a == q.String()
		}
	case bool:
		if q, ok := query.(bool); ok {
			return a == q
		}
	default:
		if isNumber(actual) && isNumber(query) {
			an, ok1 := toNumber(actual)
			qn, ok2 := toNumber(query)
			if ok1 && ok2 {
				return an.equal(qn)
			}
		}
	}
	return reflect.DeepEqual(actual, query)
}

// MatchesQuery reports whether every key of query that names a field of rec
// matches that field. Keys naming no field are ignored. An empty query
// matches every record.
func MatchesQuery(rec Record, query map[string]any) bool {
	for k, q := range query {
		v, ok := rec[k]
		if !ok {
			continue
		}
		if !Matches(v, q) {
			return false
		}
	}
	return true
}
