package domain

import "time"

// JobStatus represents the pipeline state of a job.
type JobStatus string

const (
	// StatusNew is implicit: a job with no record. It is never stored.
	StatusNew                    JobStatus = "New"
	StatusRelevant               JobStatus = "Relevant"
	StatusNotRelevant            JobStatus = "NotRelevant"
	StatusApplied                JobStatus = "Applied"
	StatusErrorScraping          JobStatus = "Error_Scraping"
	StatusErrorCheckingRelevance JobStatus = "Error_CheckingRelevance"
	StatusErrorEditingResume     JobStatus = "Error_EditingResume"
	StatusErrorPdfGeneration     JobStatus = "Error_PdfGeneration"
	StatusErrorSubmitting        JobStatus = "Error_Submitting"
)

// AllStatuses lists every storable status in pipeline order.
var AllStatuses = []JobStatus{
	StatusRelevant,
	StatusNotRelevant,
	StatusApplied,
	StatusErrorScraping,
	StatusErrorCheckingRelevance,
	StatusErrorEditingResume,
	StatusErrorPdfGeneration,
	StatusErrorSubmitting,
}

// legacyStatuses maps spellings found in older state files.
var legacyStatuses = map[string]JobStatus{
	"Not Relevant":             StatusNotRelevant,
	"Error_Checking_Relevance": StatusErrorCheckingRelevance,
}

// ParseStatus returns the status named by s.
func ParseStatus(s string) (JobStatus, bool) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, true
		}
	}
	st, ok := legacyStatuses[s]
	return st, ok
}

// Valid reports whether s may be stored on a record.
func (s JobStatus) Valid() bool {
	_, ok := ParseStatus(string(s))
	return ok && s != StatusNew
}

// IsTerminal returns true for outcomes that are never re-offered.
func (s JobStatus) IsTerminal() bool {
	return s == StatusApplied || s == StatusNotRelevant
}

// IsError returns true for the per-stage failure statuses.
func (s JobStatus) IsError() bool {
	switch s {
	case StatusErrorScraping, StatusErrorCheckingRelevance, StatusErrorEditingResume,
		StatusErrorPdfGeneration, StatusErrorSubmitting:
		return true
	}
	return false
}

// IsRetryable returns true if a job in this status is offered again on the next pass.
// Relevant counts: the job was interrupted after its verdict and resumes from there.
func (s JobStatus) IsRetryable() bool {
	return s == StatusNew || s == StatusRelevant || s.IsError()
}

// JobStub is a discovered job before it has a record.
type JobStub struct {
	ID    string
	Title string
}

// HistoryEntry is one status transition.
type HistoryEntry struct {
	Timestamp   time.Time
	Status      JobStatus
	Explanation string
}

// JobRecord tracks one job through the pipeline. The current status is the
// last history entry; History is only ever appended to.
type JobRecord struct {
	ID      string
	Title   string
	History []HistoryEntry
}

// Status returns the current status, or StatusNew for an empty history.
func (r *JobRecord) Status() JobStatus {
	if len(r.History) == 0 {
		return StatusNew
	}
	return r.History[len(r.History)-1].Status
}

// Explanation returns the reason attached to the current status.
func (r *JobRecord) Explanation() string {
	if len(r.History) == 0 {
		return ""
	}
	return r.History[len(r.History)-1].Explanation
}

// LastUpdated returns the time of the most recent transition.
func (r *JobRecord) LastUpdated() time.Time {
	if len(r.History) == 0 {
		return time.Time{}
	}
	return r.History[len(r.History)-1].Timestamp
}

// WasRelevant reports whether the job ever received a Relevant verdict.
func (r *JobRecord) WasRelevant() bool {
	for _, h := range r.History {
		if h.Status == StatusRelevant {
			return true
		}
	}
	return false
}

// Attempts counts the error transitions in the history.
func (r *JobRecord) Attempts() int {
	n := 0
	for _, h := range r.History {
		if h.Status.IsError() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (r *JobRecord) Clone() JobRecord {
	c := JobRecord{ID: r.ID, Title: r.Title}
	c.History = make([]HistoryEntry, len(r.History))
	copy(c.History, r.History)
	return c
}

// Artifact is a rendered document.
type Artifact struct {
	Data    []byte
	Attempt int
}
