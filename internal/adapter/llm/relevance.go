package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cwygoda/autoapply/internal/domain"
)

// Evaluate implements domain.RelevanceOracle.
func (c *Client) Evaluate(ctx context.Context, profile, title, description string) (domain.Verdict, error) {
	if strings.TrimSpace(description) == "" {
		return domain.Verdict{}, errors.New("job description is empty")
	}
	if strings.TrimSpace(profile) == "" {
		return domain.Verdict{}, errors.New("profile is empty")
	}
	if n := utf8.RuneCountInString(description); n > c.cfg.MaxDescription {
		c.log.Warn("llm.relevance.truncated", "title", title, "len", n, "max", c.cfg.MaxDescription)
		description = string([]rune(description)[:c.cfg.MaxDescription]) + "..."
	}

	msgs := []message{
		{Role: "system", Content: relevanceSystemPrompt(c.cfg.Rules)},
		{Role: "user", Content: relevanceUserPrompt(profile, title, description)},
		{Role: "system", Content: "JSON Schema:\n" + mustJSON(verdictSchema())},
	}
	content, err := c.complete(ctx, "relevance", msgs, true)
	if err != nil {
		return domain.Verdict{}, err
	}
	return c.parseVerdict(content)
}

// parseVerdict accepts the schema-conformant JSON reply and, failing that, the
// two-line "Relevant\nexplanation" form.
func (c *Client) parseVerdict(content string) (domain.Verdict, error) {
	raw := []byte(CleanOutput(content))
	err := validateJSON(c.verdict, raw)
	if err == nil {
		var out struct {
			Verdict     string `json:"verdict"`
			Explanation string `json:"explanation"`
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return domain.Verdict{}, fmt.Errorf("unmarshal verdict: %w", err)
		}
		return domain.Verdict{
			Relevant:    out.Verdict == "Relevant",
			Explanation: strings.TrimSpace(out.Explanation),
		}, nil
	}
	c.log.Debug("llm.relevance.schema_validation_failed", "error", err)

	var lines []string
	for _, l := range strings.Split(content, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return domain.Verdict{}, fmt.Errorf("%w: empty reply", ErrUnknownVerdict)
	}
	explanation := "No explanation provided."
	if len(lines) > 1 {
		explanation = lines[1]
	}
	switch strings.Trim(lines[0], "*.: ") {
	case "Relevant":
		return domain.Verdict{Relevant: true, Explanation: explanation}, nil
	case "Not Relevant":
		return domain.Verdict{Explanation: explanation}, nil
	}
	return domain.Verdict{}, fmt.Errorf("%w: %q", ErrUnknownVerdict, lines[0])
}

func relevanceSystemPrompt(rules []string) string {
	var b strings.Builder
	b.WriteString("You screen job postings for a candidate. ")
	b.WriteString("Assess the alignment between the candidate's skills and experience and the role's requirements, considering the overall focus of the role. ")
	if len(rules) > 0 {
		b.WriteString("Hard rules; a job that violates any of them is not relevant:\n")
		for i, r := range rules {
			fmt.Fprintf(&b, "%d. %s\n", i+1, r)
		}
		b.WriteString("If a hard rule decided the verdict, say which one in the explanation. ")
	}
	b.WriteString(`Return ONLY a JSON object {"verdict": "Relevant" | "Not Relevant", "explanation": "<one sentence>"}.`)
	return b.String()
}

func relevanceUserPrompt(profile, title, description string) string {
	var b strings.Builder
	b.WriteString("Candidate profile (markdown):\n--- START PROFILE ---\n")
	b.WriteString(profile)
	b.WriteString("\n--- END PROFILE ---\n\nJob title: ")
	b.WriteString(title)
	b.WriteString("\n\nJob description:\n--- START DESCRIPTION ---\n")
	b.WriteString(description)
	b.WriteString("\n--- END DESCRIPTION ---")
	return b.String()
}
