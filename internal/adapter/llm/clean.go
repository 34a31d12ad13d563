package llm

import (
	"regexp"
	"strings"
)

var (
	fencedBlock = regexp.MustCompile("(?is)^```[a-z]*\\s*\\n(.*?)\\n```$")
	wrapperTags = []*regexp.Regexp{
		regexp.MustCompile(`(?is)^\s*<html[^>]*>`),
		regexp.MustCompile(`(?is)</html\s*>\s*$`),
		regexp.MustCompile(`(?is)^\s*<body[^>]*>`),
		regexp.MustCompile(`(?is)</body\s*>\s*$`),
	}
)

// CleanOutput strips a surrounding code fence and stray html/body wrappers
// from model output.
func CleanOutput(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fencedBlock.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	} else if strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") && len(s) >= 6 {
		s = strings.TrimSpace(s[3 : len(s)-3])
	}
	for _, re := range wrapperTags {
		s = strings.TrimSpace(re.ReplaceAllString(s, ""))
	}
	return s
}
