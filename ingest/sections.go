package ingest

import (
	"regexp"
	"strings"
)

// CanonicalSections are the recognized section names; any other heading
// found in the source is kept, lowercased, as its own section key.
var CanonicalSections = []string{
	"abstract", "introduction", "methodology", "results", "conclusion", "references",
}

var canonicalAliases = map[string]string{
	"abstract":     "abstract",
	"summary":      "abstract",
	"introduction": "introduction",
	"background":   "introduction",
	"methodology":  "methodology",
	"methods":      "methodology",
	"method":       "methodology",
	"results":      "results",
	"findings":     "results",
	"conclusion":   "conclusion",
	"conclusions":  "conclusion",
	"discussion":   "conclusion",
	"references":   "references",
	"bibliography": "references",
}

var (
	numberedHeadingRE = regexp.MustCompile(`^\s*(?:\d+(?:\.\d+)*\.?|[IVXLCDM]+\.?)\s+([A-Za-z][A-Za-z \-]{2,60})\s*$`)
	allCapsHeadingRE  = regexp.MustCompile(`^[A-Z][A-Z0-9 \-&]{2,60}$`)
)

// headingMatch classifies a single line as a section heading and returns
// its canonical name, or ("", false) if the line isn't a heading.
func headingMatch(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", false
	}

	lower := strings.ToLower(trimmed)
	if canon, ok := canonicalAliases[lower]; ok {
		return canon, true
	}

	if m := numberedHeadingRE.FindStringSubmatch(trimmed); m != nil {
		lowerTitle := strings.ToLower(strings.TrimSpace(m[1]))
		if canon, ok := canonicalAliases[lowerTitle]; ok {
			return canon, true
		}
		return lowerTitle, true
	}

	if allCapsHeadingRE.MatchString(trimmed) && len(strings.Fields(trimmed)) <= 6 {
		lowerTitle := strings.ToLower(trimmed)
		if canon, ok := canonicalAliases[lowerTitle]; ok {
			return canon, true
		}
		return lowerTitle, true
	}

	return "", false
}

// DetectSections splits raw extracted text into a mapping from canonical
// section name (or arbitrary heading text) to section body, using
// case-insensitive heading match, numbered-heading match, and an
// ALL-CAPS/short-standalone-line heuristic in sequence per line.
func DetectSections(text string) map[string]string {
	lines := strings.Split(text, "\n")
	sections := make(map[string]string)

	currentSection := "preamble"
	var body strings.Builder

	flush := func() {
		if body.Len() == 0 {
			return
		}
		existing := sections[currentSection]
		if existing != "" {
			existing += "\n"
		}
		sections[currentSection] = existing + strings.TrimSpace(body.String())
		body.Reset()
	}

	for _, line := range lines {
		if name, ok := headingMatch(line); ok {
			flush()
			currentSection = name
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	if abstract, ok := extractAbstract(text, sections); ok {
		sections["abstract"] = abstract
	}

	return sections
}

// extractAbstract applies the three-strategy fallback: explicit "abstract"
// header, "summary" header, or position-based extraction between the
// title/authors block and the introduction, validated by a 50-2000 word
// length check.
func extractAbstract(text string, sections map[string]string) (string, bool) {
	if a, ok := sections["abstract"]; ok && wordCountInRange(a, 50, 2000) {
		return a, true
	}

	intro, hasIntro := sections["introduction"]
	if hasIntro {
		idx := strings.Index(text, intro)
		if idx > 0 {
			candidate := text[:idx]
			if wordCountInRange(candidate, 50, 2000) {
				return strings.TrimSpace(candidate), true
			}
		}
	}

	return "", false
}

func wordCountInRange(s string, min, max int) bool {
	n := len(strings.Fields(s))
	return n >= min && n <= max
}

var doiRE = regexp.MustCompile(`\b10\.\d{4,9}/[^\s"'<>]+\b`)

// ExtractDOI finds the first plausible DOI substring in text, trimming
// trailing punctuation a sentence boundary might attach.
func ExtractDOI(text string) (string, bool) {
	match := doiRE.FindString(text)
	if match == "" {
		return "", false
	}
	return strings.TrimRight(match, ".,;)"), true
}
