package scheduling

// FailureKind classifies why a ledger operation did not fully commit.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureValidation FailureKind = "validation"
	FailureConflict   FailureKind = "conflict"
	FailureStore      FailureKind = "store"
	// FailurePartial marks a reschedule whose cancel step committed but
	// whose create step and compensating restore both failed: the ledger is
	// left with a booking gap and needs operator attention.
	FailurePartial FailureKind = "partial"
)

// Result is the structured outcome of every ledger operation. Remote
// failures are folded in here instead of escaping as raw errors, so callers
// always get a success flag plus a message they can surface directly.
type Result struct {
	Success    bool             `json:"success"`
	Kind       FailureKind      `json:"kind,omitempty"`
	Message    string           `json:"message"`
	Paths      []string         `json:"paths,omitempty"`
	Validation ValidationErrors `json:"validation,omitempty"`
}

func committed(message string, paths ...string) Result {
	return Result{Success: true, Message: message, Paths: paths}
}

func failed(kind FailureKind, message string) Result {
	return Result{Success: false, Kind: kind, Message: message}
}

func invalid(errs ValidationErrors) Result {
	return Result{
		Success:    false,
		Kind:       FailureValidation,
		Message:    errs.Error(),
		Validation: errs,
	}
}
