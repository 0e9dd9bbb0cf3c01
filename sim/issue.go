package sim

import "fmt"

// Severity grades a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is one structured finding about a model. Issues are pure output
// values: they reference the model through Path but are never part of it.
type Issue struct {
	Severity Severity `json:"severity" yaml:"severity"`
	RuleID   string   `json:"rule_id" yaml:"rule_id"`
	Path     string   `json:"target_path" yaml:"target_path"`
	Message  string   `json:"message" yaml:"message"`
	Fix      string   `json:"suggested_fix,omitempty" yaml:"suggested_fix,omitempty"`
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s %s: %s", i.Severity, i.RuleID, i.Path, i.Message)
}

// Report is an ordered list of issues with severity accessors.
type Report []Issue

// Errors returns the error-severity subset in order.
func (r Report) Errors() []Issue { return r.bySeverity(SeverityError) }

// Warnings returns the warning-severity subset in order.
func (r Report) Warnings() []Issue { return r.bySeverity(SeverityWarning) }

// HasErrors reports whether any issue blocks downstream import.
func (r Report) HasErrors() bool { return len(r.Errors()) > 0 }

func (r Report) bySeverity(s Severity) []Issue {
	var out []Issue
	for _, i := range r {
		if i.Severity == s {
			out = append(out, i)
		}
	}
	return out
}

// Stable dotted paths into the serialized model. These are part of the
// report wire contract and must match the serialized collection names.

// MessagePath returns e.g. "messages[2]".
func MessagePath(m int) string { return fmt.Sprintf("messages[%d]", m) }

// SegmentPath returns e.g. "messages[2].segments[0]".
func SegmentPath(m, s int) string { return fmt.Sprintf("messages[%d].segments[%d]", m, s) }

// FieldPath returns e.g. "messages[2].segments[0].fields[3]".
func FieldPath(m, s, f int) string {
	return fmt.Sprintf("messages[%d].segments[%d].fields[%d]", m, s, f)
}

// DictionaryPath returns e.g. "dictionary[7]".
func DictionaryPath(d int) string { return fmt.Sprintf("dictionary[%d]", d) }

// EnumPath returns e.g. "enums[1]".
func EnumPath(e int) string { return fmt.Sprintf("enums[%d]", e) }
