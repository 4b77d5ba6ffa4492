package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Trace    string // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Trace != "" {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, line := range strings.Split(strings.TrimRight(e.Trace, "\n"), "\n") {
			fmt.Fprintf(&buf, "  %s\n", line)
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and records each failure on
// result. It returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			msg := fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err)
			failures = append(failures, msg)
			result.AddError(msg)
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertAccepted:
		return assertAccepted(result)
	case AssertRejected:
		return assertRejected(result, a)
	case AssertSQL:
		return assertSQL(result, a)
	case AssertRows:
		return assertRows(result, a)
	case AssertRowCount:
		return assertRowCount(result, a)
	case AssertTraceContains:
		return assertTraceContains(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertAccepted(result *Result) error {
	if result.Accepted() {
		return nil
	}
	return &AssertionError{
		Type:     AssertAccepted,
		Expected: "filter accepted",
		Actual:   result.Rejection.Error(),
	}
}

// assertRejected matches only the rejection fields the assertion sets.
func assertRejected(result *Result, a Assertion) error {
	if result.Accepted() {
		return &AssertionError{
			Type:     AssertRejected,
			Expected: describeRejection(a.Code, a.Field, a.Message),
			Actual:   "filter accepted",
			Trace:    result.Trace,
		}
	}
	got := result.Rejection
	if (a.Field != "" && a.Field != got.Field) ||
		(a.Code != "" && a.Code != got.Code) ||
		(a.Message != "" && a.Message != got.Message) {
		return &AssertionError{
			Type:     AssertRejected,
			Expected: describeRejection(a.Code, a.Field, a.Message),
			Actual:   describeRejection(got.Code, got.Field, got.Message),
		}
	}
	return nil
}

func describeRejection(code, field, message string) string {
	var parts []string
	if code != "" {
		parts = append(parts, "code="+code)
	}
	if field != "" {
		parts = append(parts, "field="+field)
	}
	if message != "" {
		parts = append(parts, fmt.Sprintf("message=%q", message))
	}
	return "rejection " + strings.Join(parts, " ")
}

func assertSQL(result *Result, a Assertion) error {
	if !result.Accepted() {
		return &AssertionError{Type: AssertSQL, Expected: a.SQL, Actual: result.Rejection.Error()}
	}
	if strings.TrimSpace(a.SQL) != result.SQL {
		return &AssertionError{Type: AssertSQL, Expected: a.SQL, Actual: result.SQL, Trace: result.Trace}
	}
	return nil
}

func assertRows(result *Result, a Assertion) error {
	if err := requireExecuted(result, AssertRows); err != nil {
		return err
	}
	want := make([]string, len(a.IDs))
	for i, id := range a.IDs {
		want[i] = fmt.Sprint(id)
	}
	got := make([]string, len(result.IDs))
	for i, id := range result.IDs {
		got[i] = fmt.Sprint(id)
	}
	if strings.Join(want, ",") != strings.Join(got, ",") {
		return &AssertionError{
			Type:     AssertRows,
			Expected: "ids [" + strings.Join(want, ", ") + "]",
			Actual:   "ids [" + strings.Join(got, ", ") + "]",
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertRowCount(result *Result, a Assertion) error {
	if err := requireExecuted(result, AssertRowCount); err != nil {
		return err
	}
	if len(result.IDs) != a.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows", a.Count),
			Actual:   fmt.Sprintf("%d rows", len(result.IDs)),
			Trace:    result.Trace,
		}
	}
	return nil
}

func requireExecuted(result *Result, kind string) error {
	switch {
	case !result.Accepted():
		return &AssertionError{Type: kind, Expected: "statement executed", Actual: result.Rejection.Error()}
	case !result.Executed:
		return &AssertionError{Type: kind, Expected: "statement executed", Actual: "no executor configured"}
	}
	return nil
}

// assertTraceContains looks for call as a whole line, ignoring indentation.
func assertTraceContains(result *Result, a Assertion) error {
	want := strings.TrimSpace(a.Call)
	for _, line := range strings.Split(result.Trace, "\n") {
		if strings.TrimSpace(line) == want {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: want,
		Actual:   "not found in trace",
		Trace:    result.Trace,
	}
}
