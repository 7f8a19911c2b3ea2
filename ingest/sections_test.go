package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectSectionsCanonicalHeadings(t *testing.T) {
	abstractBody := strings.Repeat("word ", 60)
	text := "Abstract\n" + abstractBody + "\nIntroduction\nThis introduces the work.\nMethods\nWe did things.\nResults\nIt worked.\nConclusion\nIt is done.\nReferences\n[1] Someone, Somewhere."

	sections := DetectSections(text)

	assert.Contains(t, sections, "introduction")
	assert.Contains(t, sections["introduction"], "introduces")
	assert.Contains(t, sections, "methodology")
	assert.Contains(t, sections["methodology"], "did things")
	assert.Contains(t, sections, "results")
	assert.Contains(t, sections, "conclusion")
	assert.Contains(t, sections, "references")
}

func TestDetectSectionsNumberedHeadings(t *testing.T) {
	text := "1. Introduction\nSome intro text.\n2. Methodology\nSome method text.\nIII. Results\nSome results text."
	sections := DetectSections(text)

	assert.Contains(t, sections["introduction"], "intro text")
	assert.Contains(t, sections["methodology"], "method text")
	assert.Contains(t, sections["results"], "results text")
}

func TestDetectSectionsAllCapsHeading(t *testing.T) {
	text := "DISCUSSION\nWe discuss implications here at length."
	sections := DetectSections(text)
	assert.Contains(t, sections["conclusion"], "implications")
}

func TestExtractAbstractPositionFallback(t *testing.T) {
	abstractBody := strings.Repeat("filler ", 60)
	text := "Paper Title\nAuthor One, Author Two\n" + abstractBody + "\nIntroduction\nThe introduction starts here."

	sections := DetectSections(text)
	abstract, ok := sections["abstract"]
	assert.True(t, ok)
	assert.Contains(t, abstract, "filler")
}

func TestExtractAbstractRejectsTooShort(t *testing.T) {
	text := "Title\nAuthors\ntoo short\nIntroduction\nBody text that is the introduction."
	sections := DetectSections(text)
	// Too-short preamble fails the 50-2000 word validity check, so no
	// abstract key is synthesized from position.
	_, ok := sections["abstract"]
	assert.False(t, ok)
}

func TestExtractDOI(t *testing.T) {
	doi, found := ExtractDOI("See https://doi.org/10.1000/xyz123 for details.")
	assert.True(t, found)
	assert.Equal(t, "10.1000/xyz123", doi)

	_, found = ExtractDOI("no doi present here")
	assert.False(t, found)
}

func TestExtractDOITrimsTrailingPunctuation(t *testing.T) {
	doi, found := ExtractDOI("Reference (10.1234/abcd.efgh).")
	assert.True(t, found)
	assert.False(t, strings.HasSuffix(doi, ")"))
}
