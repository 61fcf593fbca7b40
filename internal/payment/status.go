package payment

// Provider status codes as they appear on the wire.
const (
	CodeSuccess    = "TS"
	CodeFailure    = "TF"
	CodeInProgress = "TIP"
	CodeUnknown    = "UNKNOWN"
)

// Status is the canonical form of the provider's raw transaction status.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
	StatusUnknown    Status = "unknown"
)

// StatusFromCode normalizes a raw provider status code. Anything outside
// the documented codes maps to Unknown, which is retryable rather than fatal.
func StatusFromCode(code string) Status {
	switch code {
	case CodeSuccess:
		return StatusSuccessful
	case CodeFailure:
		return StatusFailed
	case CodeInProgress:
		return StatusInProgress
	default:
		return StatusUnknown
	}
}

// Code returns the wire form reported to the buyer-facing polling client.
func (s Status) Code() string {
	switch s {
	case StatusSuccessful:
		return CodeSuccess
	case StatusFailed:
		return CodeFailure
	case StatusInProgress:
		return CodeInProgress
	default:
		return CodeUnknown
	}
}

// Terminal reports whether the status ends the payment attempt.
func (s Status) Terminal() bool {
	return s == StatusSuccessful || s == StatusFailed
}

// Observation is a normalized status report from either confirmation
// channel, ready to be applied by the reconciliation engine.
type Observation struct {
	Status      Status
	Message     string
	ProviderRef string
}
