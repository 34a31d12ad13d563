package worker

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

const maxNameLen = 100

var (
	requisitionID = regexp.MustCompile(`WD\d+`)
	unsafeChars   = strings.NewReplacer(
		"<", "", ">", "", ":", "", `"`, "", "/", "", `\`, "", "|", "", "?", "", "*", "",
		" ", "_",
	)
)

// SanitizeFilename makes a job title safe to use in a file name.
func SanitizeFilename(title string) string {
	s := unsafeChars.Replace(strings.TrimSpace(title))
	if r := []rune(s); len(r) > maxNameLen {
		s = string(r[:maxNameLen])
	}
	if s == "" {
		return "untitled"
	}
	return s
}

// JobKey returns the requisition number in a job URL, or a short hash of it.
func JobKey(url string) string {
	if m := requisitionID.FindString(url); m != "" {
		return m
	}
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:8]
}

// ArtifactName is the base name shared by a job's edited résumé and its PDF.
func ArtifactName(title, url, ext string) string {
	return "resume_" + SanitizeFilename(title) + "_" + JobKey(url) + ext
}
