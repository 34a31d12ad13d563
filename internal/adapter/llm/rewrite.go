package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cwygoda/autoapply/internal/domain"
)

// Rewrite implements domain.ContentRewriter for both tailor and shrink requests.
func (c *Client) Rewrite(ctx context.Context, req domain.RewriteRequest) (string, error) {
	if strings.TrimSpace(req.Content) == "" {
		return "", errors.New("nothing to rewrite")
	}

	var msgs []message
	switch req.Mode {
	case domain.RewriteTailor:
		msgs = []message{
			{Role: "system", Content: tailorSystemPrompt},
			{Role: "user", Content: tailorUserPrompt(req)},
		}
	case domain.RewriteShrink:
		msgs = []message{
			{Role: "system", Content: shrinkSystemPrompt(req.Actions, req.Policy)},
			{Role: "user", Content: shrinkUserPrompt(req)},
		}
	default:
		return "", fmt.Errorf("unknown rewrite mode %d", req.Mode)
	}

	content, err := c.complete(ctx, req.Mode.String(), msgs, false)
	if err != nil {
		return "", err
	}
	out := CleanOutput(content)
	if n := utf8.RuneCountInString(out); req.Mode == domain.RewriteTailor && n < c.cfg.MinTailored {
		c.log.Warn("llm.tailor.too_short", "len", n, "min", c.cfg.MinTailored)
		return "", fmt.Errorf("%w: %d chars", ErrShortRewrite, n)
	}
	return out, nil
}

const tailorSystemPrompt = `You tailor a candidate's markdown résumé to one job posting.
Keep the structure: first line "# Name", the contact line, then "## " sections, "### " entries and "- " bullets.
Reorder and reword to emphasise experience relevant to the job. Do not invent employers, degrees, dates or skills; only use facts from the résumé or the reference CV.
Return ONLY the complete markdown résumé, without code fences or commentary.`

func tailorUserPrompt(req domain.RewriteRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job title: %s\n\nJob description:\n--- START DESCRIPTION ---\n%s\n--- END DESCRIPTION ---\n\n", req.Title, req.Context)
	b.WriteString("Base résumé:\n--- START RESUME ---\n")
	b.WriteString(req.Content)
	b.WriteString("\n--- END RESUME ---\n")
	if strings.TrimSpace(req.Reference) != "" {
		b.WriteString("\nReference CV with additional facts you may draw on:\n--- START CV ---\n")
		b.WriteString(req.Reference)
		b.WriteString("\n--- END CV ---\n")
	}
	return b.String()
}

func shrinkSystemPrompt(actions []domain.ShrinkAction, p domain.ShrinkPolicy) string {
	var b strings.Builder
	b.WriteString("You shorten the BODY of a markdown résumé so that the rendered résumé fits on a single page. ")
	b.WriteString("Use the job description to decide what is least relevant. ")
	b.WriteString("Apply ONLY ONE of the following actions, the first one that applies, in this order:\n")
	for i, a := range actions {
		fmt.Fprintf(&b, "%d) %s\n", i+1, describeAction(a, p))
	}
	b.WriteString("Keep the markdown structure (\"## \" sections, \"### \" entries, \"- \" bullets). ")
	b.WriteString("Return ONLY the complete shortened body, without code fences or commentary.")
	return b.String()
}

func describeAction(a domain.ShrinkAction, p domain.ShrinkPolicy) string {
	switch a {
	case domain.ShrinkCollapseCredentials:
		return "Remove redundant degrees: drop a BS when an MS in the same field is listed, an MS when a PhD is listed."
	case domain.ShrinkMergeSkillCategories:
		return fmt.Sprintf("If the skills section has more than %d categories, merge them into %d or fewer. Do not remove individual skills.", p.MaxSkillCategories, p.MaxSkillCategories)
	case domain.ShrinkDropLeastRelevantBullet:
		return "Remove the single least relevant bullet point across experience and projects."
	case domain.ShrinkDropDuplicateBullet:
		return "Remove one bullet that repeats information stated elsewhere."
	case domain.ShrinkDropExperienceEntry:
		return fmt.Sprintf("If more than %d experience entries remain, remove the least relevant one.", p.MinExperienceEntries)
	case domain.ShrinkDropProjectEntry:
		return fmt.Sprintf("If more than %d project entries remain, remove the least relevant one.", p.MinProjectEntries)
	case domain.ShrinkRephraseSummary:
		return "Rephrase the summary to be shorter."
	}
	return a.String()
}

func shrinkUserPrompt(req domain.RewriteRequest) string {
	var b strings.Builder
	b.WriteString("Job description:\n--- START DESCRIPTION ---\n")
	b.WriteString(req.Context)
	b.WriteString("\n--- END DESCRIPTION ---\n\nRésumé body:\n--- START BODY ---\n")
	b.WriteString(req.Content)
	b.WriteString("\n--- END BODY ---")
	return b.String()
}
