package ingest

import (
	"regexp"
	"strings"
)

const (
	minSentenceLen = 40
	maxSentenceLen = 240
)

// Candidate is one sentence that cleared the length and high-signal
// filters and whose anchor was hard-validated against the canonical text.
type Candidate struct {
	Text         string
	Heading      string
	CharStart    int
	CharEnd      int
	FragmentHash string
}

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)

var assertionVerbs = regexp.MustCompile(`(?i)\b(is|are|was|were|has|have|had|founded|provides|offers|operates|specializes|located|based|serves|includes|consists|launched|announced|released|supports|builds|develops|manufactures)\b`)
var properNoun = regexp.MustCompile(`\b[A-Z][a-zA-Z]{2,}\b`)

// isHighSignal reports whether a sentence carries an entity mention or an
// assertion verb, the heuristic gate for fact-worthy text.
func isHighSignal(s string) bool {
	return assertionVerbs.MatchString(s) || properNoun.MatchString(s)
}

func splitSentences(text string) []string {
	return sentencePattern.FindAllString(text, -1)
}

// AtomizeSentences splits every section into sentences, keeps candidates
// in the 40-240 char range with a high-signal pattern, and hard-validates
// each one's anchor against the canonical text before emitting it -- a
// sentence whose anchor cannot be validated is dropped, never emitted with
// an invalid offset. considered is the count of sentences that cleared the
// length/signal filters before anchor validation, used by the QA gate to
// compute the grounded-fact rate.
func AtomizeSentences(canonical *Canonical) (candidates []Candidate, considered int) {
	searchFrom := 0

	for _, sec := range canonical.Sections {
		for _, raw := range splitSentences(sec.Text) {
			s := strings.TrimSpace(raw)
			if len(s) < minSentenceLen || len(s) > maxSentenceLen {
				continue
			}
			if !isHighSignal(s) {
				continue
			}
			considered++

			off := strings.Index(canonical.Text[searchFrom:], s)
			if off == -1 {
				off = strings.Index(canonical.Text, s)
				if off == -1 {
					continue
				}
			} else {
				off += searchFrom
			}

			start := off
			end := start + len(s)
			supportingText := canonical.Text[start:end]
			hash := sha256Hex(supportingText)

			if supportingText != s || sha256Hex(s) != hash {
				continue
			}

			candidates = append(candidates, Candidate{
				Text:         s,
				Heading:      sec.Heading,
				CharStart:    start,
				CharEnd:      end,
				FragmentHash: hash,
			})
			searchFrom = end
		}
	}
	return candidates, considered
}
