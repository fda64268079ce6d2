package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrSearchFailed signals a task that aborted with zero retained
	// documents. Distinct from a successful search that found nothing
	// relevant.
	ErrSearchFailed = errors.New("search failed")
	// ErrEscalationDeclined signals that the optimizer judged the intent a
	// plain-chat exchange, outside the investigation pipeline.
	ErrEscalationDeclined = errors.New("escalation not warranted")
)

// RetrievalError classifies a failed retrieval call. Retryable=true means
// the retry budget was exhausted on transient failures; Retryable=false
// means the call failed terminally (bad request, auth) and was not retried.
type RetrievalError struct {
	Query     string
	Attempts  int
	Retryable bool
	Err       error
}

func (e *RetrievalError) Error() string {
	kind := "terminal"
	if e.Retryable {
		kind = "retries exhausted"
	}
	return fmt.Sprintf("retrieval %s for %q after %d attempt(s): %v", kind, e.Query, e.Attempts, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// PersistenceError wraps a storage failure with the operation name.
// Duplicate doc_id inserts are not persistence errors; they are the
// expected idempotence path and surface as stored=false.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }
