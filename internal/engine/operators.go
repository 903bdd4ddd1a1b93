package engine

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/flagvane/flagvane/internal/models"
)

// OperatorHandler evaluates one constraint operator against the
// stringified entity-context value and the constraint's stored value.
type OperatorHandler interface {
	Check(contextValue, constraintValue string) bool
}

var (
	operatorHandlers = map[models.Operator]OperatorHandler{
		models.OpEQ:          equalsHandler{},
		models.OpNEQ:         notHandler{equalsHandler{}},
		models.OpLT:          numericCompareHandler{cmp: func(a, b float64) bool { return a < b }},
		models.OpLTE:         numericCompareHandler{cmp: func(a, b float64) bool { return a <= b }},
		models.OpGT:          numericCompareHandler{cmp: func(a, b float64) bool { return a > b }},
		models.OpGTE:         numericCompareHandler{cmp: func(a, b float64) bool { return a >= b }},
		models.OpIN:          inSetHandler{},
		models.OpNOTIN:       notHandler{inSetHandler{}},
		models.OpCONTAINS:    containsHandler{},
		models.OpNOTCONTAINS: notHandler{containsHandler{}},
		models.OpEREG:        regexHandler{},
		models.OpNEREG:       notHandler{regexHandler{}},
	}
	// regexCache keeps compiled regex by pattern for the hot evaluation
	// path. Expected value type is *regexp.Regexp.
	regexCache sync.Map
)

// MatchConstraints reports whether every constraint matches the
// context. An empty constraint list matches unconditionally; multiple
// constraints are pure AND. Unknown operators and malformed constraint
// values fail the individual constraint, never the evaluation.
func MatchConstraints(constraints []models.Constraint, context map[string]any) bool {
	for i := range constraints {
		if !matchConstraint(&constraints[i], context) {
			return false
		}
	}
	return true
}

func matchConstraint(c *models.Constraint, context map[string]any) bool {
	handler, ok := operatorHandlers[c.Operator]
	if !ok {
		return false
	}
	return handler.Check(stringify(context[c.Property]), c.Value)
}

type equalsHandler struct{}

func (equalsHandler) Check(contextValue, constraintValue string) bool {
	return contextValue == constraintValue
}

type containsHandler struct{}

func (containsHandler) Check(contextValue, constraintValue string) bool {
	return strings.Contains(contextValue, constraintValue)
}

type inSetHandler struct{}

// Check splits the constraint value on commas; whitespace around items
// is ignored so "US, CA, UK" behaves as expected.
func (inSetHandler) Check(contextValue, constraintValue string) bool {
	for _, item := range strings.Split(constraintValue, ",") {
		if strings.TrimSpace(item) == contextValue {
			return true
		}
	}
	return false
}

type regexHandler struct{}

// Check treats an unparseable pattern as absence of a match rather than
// an error: a single bad constraint must not break evaluation.
func (regexHandler) Check(contextValue, constraintValue string) bool {
	rx, ok := getCompiledRegex(constraintValue)
	if !ok {
		return false
	}
	return rx.MatchString(contextValue)
}

type numericCompareHandler struct {
	cmp func(a, b float64) bool
}

func (h numericCompareHandler) Check(contextValue, constraintValue string) bool {
	return h.cmp(toFloat64(contextValue), toFloat64(constraintValue))
}

// notHandler inverts a wrapped handler. NEREG over an invalid pattern
// therefore passes vacuously, mirroring "absence of match".
type notHandler struct {
	inner OperatorHandler
}

func (h notHandler) Check(contextValue, constraintValue string) bool {
	return !h.inner.Check(contextValue, constraintValue)
}

func getCompiledRegex(pattern string) (*regexp.Regexp, bool) {
	if cached, ok := regexCache.Load(pattern); ok {
		rx, ok := cached.(*regexp.Regexp)
		return rx, ok && rx != nil
	}

	rx, err := regexp.Compile(pattern)
	if err != nil {
		// Negative-cache the bad pattern so it is not recompiled per
		// evaluation.
		regexCache.Store(pattern, (*regexp.Regexp)(nil))
		return nil, false
	}
	regexCache.Store(pattern, rx)
	return rx, true
}

// stringify renders a context value in its canonical comparison form.
// The context map carries a small closed set of scalar representations;
// anything absent or unrecognized becomes the empty string.
func stringify(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case bool:
		return strconv.FormatBool(n)
	case int:
		return strconv.Itoa(n)
	case int32:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case json.Number:
		return n.String()
	default:
		return ""
	}
}

// toFloat64 coerces a comparison side to a double, treating absent or
// unparseable values as 0.0. A deliberate, simple policy rather than
// numeric-type inference.
func toFloat64(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0.0
	}
	return f
}
