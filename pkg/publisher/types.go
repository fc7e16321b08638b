package publisher

// Request is the immutable input to one publish flow. It is created per
// call and consumed once.
type Request struct {
	// Title is optional for ideas (the site caps it at 50 characters, a
	// caller-facing contract the engine does not enforce) and required for
	// articles.
	Title string

	// Content is required for both flows.
	Content string
}

// Verdict ranks how confident the engine is that a publish succeeded.
type Verdict int

const (
	// VerdictFailure means no success signal was observed.
	VerdictFailure Verdict = iota

	// VerdictLikelySuccess means an indirect signal was observed: a
	// permalink redirect, or a verification readback lost to navigation.
	VerdictLikelySuccess

	// VerdictConfirmedSuccess means the success marker was seen in the
	// page body.
	VerdictConfirmedSuccess
)

// String implements fmt.Stringer.
func (v Verdict) String() string {
	switch v {
	case VerdictConfirmedSuccess:
		return "confirmed_success"
	case VerdictLikelySuccess:
		return "likely_success"
	default:
		return "failure"
	}
}

// Succeeded reports whether the verdict serializes as success=true.
func (v Verdict) Succeeded() bool {
	return v != VerdictFailure
}

// Result is the terminal value of a publish call. No state survives the
// call beyond it.
type Result struct {
	Verdict Verdict `json:"-"`
	Success bool    `json:"success"`
	Message string  `json:"message"`
	URL     string  `json:"url,omitempty"`
}

func newResult(verdict Verdict, message, url string) Result {
	return Result{
		Verdict: verdict,
		Success: verdict.Succeeded(),
		Message: message,
		URL:     url,
	}
}

// StepStatus is the tri-state outcome of one step.
type StepStatus int

const (
	// StepUnknown means the step ran but the page gave no definitive
	// signal either way. Never fatal.
	StepUnknown StepStatus = iota

	// StepOK means the step definitively succeeded.
	StepOK

	// StepFailed means the step definitively failed, e.g. its element was
	// not found. Fatal only for required steps.
	StepFailed
)

// StepOutcome describes what one step observed. Matched reports whether
// the target element was found; ActionTaken whether the action was
// actually performed on it.
type StepOutcome struct {
	Status      StepStatus
	Matched     bool
	ActionTaken bool
	Diagnostic  string
}

func okOutcome() StepOutcome {
	return StepOutcome{Status: StepOK, Matched: true, ActionTaken: true}
}

func failedOutcome(matched bool, diagnostic string) StepOutcome {
	return StepOutcome{Status: StepFailed, Matched: matched, Diagnostic: diagnostic}
}

func unknownOutcome(diagnostic string) StepOutcome {
	return StepOutcome{Status: StepUnknown, Diagnostic: diagnostic}
}
