package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// EvaluateAssertions evaluates all assertions against a result and
// returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertHeaderContains:
		return assertHeaderContains(result, a)
	case AssertHeaderOmits:
		return assertHeaderOmits(result, a)
	case AssertRegistrationOrder:
		return assertRegistrationOrder(result, a)
	case AssertNoHeader:
		return assertNoHeader(result)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertHeaderContains(result *Result, a Assertion) error {
	if strings.Contains(result.Header, a.Text) {
		return nil
	}
	return &AssertionError{
		Type:     AssertHeaderContains,
		Expected: fmt.Sprintf("header containing %q", a.Text),
		Actual:   "not found in header",
	}
}

func assertHeaderOmits(result *Result, a Assertion) error {
	if !strings.Contains(result.Header, a.Text) {
		return nil
	}
	return &AssertionError{
		Type:     AssertHeaderOmits,
		Expected: fmt.Sprintf("header without %q", a.Text),
		Actual:   "found in header",
	}
}

// assertRegistrationOrder checks that each identifier's registration call
// appears after the previous one's. Other registrations may intervene.
func assertRegistrationOrder(result *Result, a Assertion) error {
	last := -1
	for _, id := range a.Identifiers {
		pos := strings.Index(result.Header, "micro_op_resolver."+id+"();")
		if pos < 0 {
			return &AssertionError{
				Type:     AssertRegistrationOrder,
				Expected: fmt.Sprintf("registrations in order %v", a.Identifiers),
				Actual:   fmt.Sprintf("%s is not registered", id),
			}
		}
		if pos < last {
			return &AssertionError{
				Type:     AssertRegistrationOrder,
				Expected: fmt.Sprintf("registrations in order %v", a.Identifiers),
				Actual:   fmt.Sprintf("%s is registered too early", id),
			}
		}
		last = pos
	}
	return nil
}

func assertNoHeader(result *Result) error {
	if !result.HeaderWritten {
		return nil
	}
	return &AssertionError{
		Type:     AssertNoHeader,
		Expected: "no header written",
		Actual:   "header exists",
	}
}
