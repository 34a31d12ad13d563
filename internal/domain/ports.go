package domain

import "context"

// StateRepository is the driven port for job state persistence.
// Save receives the full store and must write it all-or-nothing.
type StateRepository interface {
	Load(ctx context.Context) ([]JobRecord, error)
	Save(ctx context.Context, records []JobRecord) error
	Close() error
}

// Discoverer produces job stubs from some source.
type Discoverer interface {
	Name() string
	Discover(ctx context.Context) ([]JobStub, error)
}

// DescriptionScraper fetches the description text of a job posting.
type DescriptionScraper interface {
	Scrape(ctx context.Context, url string) (string, error)
}

// Verdict is the outcome of a relevance evaluation.
type Verdict struct {
	Relevant    bool
	Explanation string
}

// Status maps the verdict onto a job status.
func (v Verdict) Status() JobStatus {
	if v.Relevant {
		return StatusRelevant
	}
	return StatusNotRelevant
}

// RelevanceOracle decides whether a job matches the candidate profile.
type RelevanceOracle interface {
	Evaluate(ctx context.Context, profile, title, description string) (Verdict, error)
}

// RewriteMode selects what a rewrite request asks for.
type RewriteMode int

const (
	// RewriteTailor adapts a whole résumé to a job.
	RewriteTailor RewriteMode = iota
	// RewriteShrink applies at most one shrink action to a résumé body.
	RewriteShrink
)

func (m RewriteMode) String() string {
	if m == RewriteShrink {
		return "shrink"
	}
	return "tailor"
}

// RewriteRequest carries markdown content and the context to rewrite it against.
type RewriteRequest struct {
	Mode      RewriteMode
	Content   string
	Context   string
	Title     string
	Reference string
	Actions   []ShrinkAction
	Policy    ShrinkPolicy
}

// ContentRewriter returns a modified version of markdown content.
type ContentRewriter interface {
	Rewrite(ctx context.Context, req RewriteRequest) (string, error)
}

// StructuralConverter turns a markdown body into the renderer's input form.
type StructuralConverter interface {
	ToRenderForm(ctx context.Context, body string) (string, error)
}

// RenderRequest is one layout attempt. Name and Contact form the identity block.
type RenderRequest struct {
	Name    string
	Contact string
	Body    string
	Attempt int
}

// LayoutRenderer produces fixed-layout artifacts and measures them.
type LayoutRenderer interface {
	Render(ctx context.Context, req RenderRequest) (*Artifact, error)
	PageCount(ctx context.Context, a *Artifact) (int, error)
}

// SubmitRequest describes one application submission.
type SubmitRequest struct {
	JobID        string
	Title        string
	Description  string
	ArtifactPath string
}

// Submitter is the driven port for one submission mechanism.
type Submitter interface {
	Name() string
	Match(url string) bool
	Submit(ctx context.Context, req SubmitRequest) error
}

// SubmissionDriver submits a finished artifact for a job.
type SubmissionDriver interface {
	Submit(ctx context.Context, req SubmitRequest) error
}
