package pipeline

import (
	"fmt"

	"github.com/sells-group/catalog-enricher/internal/resilience"
)

// OutcomeKind is the result class of one product attempt.
type OutcomeKind int

const (
	// OutcomeOK means the product completed.
	OutcomeOK OutcomeKind = iota
	// OutcomeRetryable means the attempt hit a rate limit or transient error
	// and the same product may be tried again after a backoff.
	OutcomeRetryable
	// OutcomeFailed means the product is marked error and the batch continues.
	OutcomeFailed
	// OutcomeFatal means the batch must stop.
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFailed:
		return "failed"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the result of one product attempt.
type Outcome struct {
	Kind OutcomeKind
	Err  error
}

// classify maps an attempt error to an outcome.
func classify(err error) Outcome {
	switch {
	case err == nil:
		return Outcome{Kind: OutcomeOK}
	case resilience.IsFatal(err):
		return Outcome{Kind: OutcomeFatal, Err: err}
	case resilience.IsRetryable(err):
		return Outcome{Kind: OutcomeRetryable, Err: err}
	default:
		return Outcome{Kind: OutcomeFailed, Err: err}
	}
}

// FatalError is returned by Run when an authentication or timeout failure
// halts the batch. Products completed before the failure are kept.
type FatalError struct {
	SKU string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("pipeline: batch halted at SKU %s: %v", e.SKU, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
