package diag

// Severity orders diagnostics from informational to fatal for the run.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	// SevError fails the target or run that reported it.
	SevError
)

var severityNames = [...]string{
	SevInfo:    "info",
	SevWarning: "warning",
	SevError:   "error",
}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "unknown"
}

// AtLeast reports whether s is as severe as floor.
func (s Severity) AtLeast(floor Severity) bool { return s >= floor }
