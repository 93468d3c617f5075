package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/seantiz/graphrun/internal/model"
)

// conditionOperator is the only comparison a loop_condition may use.
const conditionOperator = ">="

// ErrConditionSyntax is returned for a loop_condition that cannot be parsed
// or evaluated.
var ErrConditionSyntax = errors.New("invalid loop condition")

// ConditionError describes why a loop_condition was rejected.
type ConditionError struct {
	Condition string
	Reason    string
}

func (e *ConditionError) Error() string {
	return fmt.Sprintf("invalid loop_condition %q: %s", e.Condition, e.Reason)
}

func (e *ConditionError) Unwrap() error {
	return ErrConditionSyntax
}

// Condition is a parsed "<key> >= <threshold>" directive.
type Condition struct {
	Key       string
	Threshold int
}

func (c Condition) String() string {
	return c.Key + conditionOperator + strconv.Itoa(c.Threshold)
}

// ParseCondition parses s, which must contain the ">=" operator exactly once
// followed by an integer threshold. Whitespace around both operands is ignored.
func ParseCondition(s string) (Condition, error) {
	parts := strings.Split(s, conditionOperator)
	if len(parts) != 2 {
		return Condition{}, &ConditionError{Condition: s, Reason: "expected <key> >= <threshold>"}
	}

	raw := strings.TrimSpace(parts[1])
	threshold, err := strconv.Atoi(raw)
	if err != nil {
		return Condition{}, &ConditionError{Condition: s, Reason: fmt.Sprintf("threshold %q is not an integer", raw)}
	}
	return Condition{Key: strings.TrimSpace(parts[0]), Threshold: threshold}, nil
}

// Eval reports whether state[c.Key] >= c.Threshold. A missing key counts as 0.
// A value that is not a number cannot be compared and yields a ConditionError.
func (c Condition) Eval(state map[string]any) (bool, error) {
	v, ok := state[c.Key]
	if !ok {
		return 0 >= c.Threshold, nil
	}

	n, ok := numeric(v)
	if !ok {
		return false, &ConditionError{
			Condition: c.String(),
			Reason:    fmt.Sprintf("state key %q holds %T, not a number", c.Key, v),
		}
	}
	return n >= float64(c.Threshold), nil
}

// loopCondition extracts the loop_condition directive from params. It reports
// false when the node has none. A directive that is present but not a string
// is returned as a ConditionError.
func loopCondition(params map[string]any) (Condition, bool, error) {
	raw, ok := params[model.ParamLoopCondition]
	if !ok || raw == nil {
		return Condition{}, false, nil
	}

	s, isString := raw.(string)
	if !isString {
		return Condition{}, true, &ConditionError{Condition: fmt.Sprint(raw), Reason: fmt.Sprintf("must be a string, got %T", raw)}
	}
	if s == "" {
		return Condition{}, false, nil
	}

	c, err := ParseCondition(s)
	return c, true, err
}

// numeric converts the shapes a numeric state value takes: Go numbers set by
// tools, float64 or json.Number from decoded requests, and bools.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
