package commerce

import (
	"fmt"
	"strings"
)

// Matcher is one field predicate applied to order items.
type Matcher func(fieldValue, compareValue string) bool

// matchers is the closed set of filter functions callers may name. The
// names mirror the upstream consumer's JavaScript string methods so
// existing callers keep working.
var matchers = map[string]Matcher{
	"includes":   strings.Contains,
	"startsWith": strings.HasPrefix,
	"endsWith":   strings.HasSuffix,
	"equals":     func(a, b string) bool { return a == b },
}

// Filter describes one item-level predicate. A leading "!" on Value negates
// the match.
type Filter struct {
	Field    string
	Value    string
	Function string
}

// Compile resolves the named filter function, rejecting unknown names
// before any orders are fetched.
func (f Filter) Compile() (func(OrderItem) bool, error) {
	match, ok := matchers[f.Function]
	if !ok {
		names := make([]string, 0, len(matchers))
		for name := range matchers {
			names = append(names, name)
		}
		return nil, fmt.Errorf("unknown filter function %q (valid: %s)", f.Function, strings.Join(names, ", "))
	}

	value := f.Value
	negate := strings.HasPrefix(value, "!")
	if negate {
		value = value[1:]
	}
	field := f.Field

	return func(item OrderItem) bool {
		fieldValue := item.Field(field)
		if fieldValue == "" {
			return false
		}
		result := match(fieldValue, value)
		if negate {
			return !result
		}
		return result
	}, nil
}

// FilterOrders keeps only the orders whose every item satisfies the
// predicate.
func FilterOrders(orders []Order, f Filter) ([]Order, error) {
	pred, err := f.Compile()
	if err != nil {
		return nil, err
	}
	var kept []Order
	for _, order := range orders {
		all := true
		for _, item := range order.OrderItems {
			if !pred(item) {
				all = false
				break
			}
		}
		if all {
			kept = append(kept, order)
		}
	}
	return kept, nil
}
