package domain

// ReportOutcome classifies how an investigation ended.
type ReportOutcome string

const (
	// OutcomeComplete means the pipeline ran to synthesis with its full
	// retained set.
	OutcomeComplete ReportOutcome = "complete"
	// OutcomePartial means synthesis ran over partial results after an
	// unrecoverable mid-task failure.
	OutcomePartial ReportOutcome = "partial"
	// OutcomeNoRelevantMaterial means the search succeeded but nothing
	// cleared the relevance threshold.
	OutcomeNoRelevantMaterial ReportOutcome = "no_relevant_material"
)

// Citation attributes a report claim to a stored document.
type Citation struct {
	Ref   int
	DocID string
	Title string
}

// Report is the synthesized outcome of an investigation.
type Report struct {
	Intent    string
	Body      string
	Citations []Citation
	Discarded []DiscardEntry
	Outcome   ReportOutcome
}
