package deepsearch

import "errors"

var (
	// ErrEscalationDeclined means the planner judged the intent a plain-chat
	// exchange; no investigation was run.
	ErrEscalationDeclined = errors.New("deepsearch: escalation not warranted")
	// ErrSearchFailed means the task aborted with nothing retained.
	ErrSearchFailed = errors.New("deepsearch: search failed")
	// ErrDocumentNotFound means no document exists with the given ID.
	ErrDocumentNotFound = errors.New("deepsearch: document not found")
)
