package llm

import "fmt"

// AnalysisType is one of the enumerated kinds of document analysis the
// gateway's /analyze endpoint accepts.
type AnalysisType string

const (
	AnalysisSummary         AnalysisType = "summary"
	AnalysisLiteratureReview AnalysisType = "literature_review"
	AnalysisKeyFindings     AnalysisType = "key_findings"
	AnalysisMethodology     AnalysisType = "methodology"
	AnalysisResultsAnalysis AnalysisType = "results_analysis"
	AnalysisLimitations     AnalysisType = "limitations"
	AnalysisFutureWork      AnalysisType = "future_work"
	AnalysisCustom          AnalysisType = "custom"
)

// ValidAnalysisType reports whether t is one of the enumerated values.
func ValidAnalysisType(t string) bool {
	switch AnalysisType(t) {
	case AnalysisSummary, AnalysisLiteratureReview, AnalysisKeyFindings, AnalysisMethodology,
		AnalysisResultsAnalysis, AnalysisLimitations, AnalysisFutureWork, AnalysisCustom:
		return true
	}
	return false
}

var analysisInstructions = map[AnalysisType]string{
	AnalysisSummary:          "Write a concise summary of the paper's contribution, approach, and conclusions.",
	AnalysisLiteratureReview: "Situate this paper within its research area, identifying the prior work it builds on or contrasts with.",
	AnalysisKeyFindings:      "List the paper's key findings as concrete, falsifiable statements.",
	AnalysisMethodology:      "Describe the methodology: the experimental design, datasets, and evaluation protocol used.",
	AnalysisResultsAnalysis:  "Analyze the reported results: what they show, how they compare to baselines, and their statistical strength.",
	AnalysisLimitations:      "Identify the limitations the authors acknowledge and any you infer from the methodology.",
	AnalysisFutureWork:       "Identify directions for future work, whether stated by the authors or implied by open gaps.",
}

// buildPrompt composes a system message for the given analysis type. A
// custom analysis type requires customPrompt to be non-empty; the caller is
// responsible for rejecting a blank custom prompt before calling Analyze.
func buildPrompt(t AnalysisType, customPrompt string) (string, error) {
	if t == AnalysisCustom {
		if customPrompt == "" {
			return "", fmt.Errorf("llm: custom analysis requires a custom_prompt")
		}
		return customPrompt, nil
	}
	instruction, ok := analysisInstructions[t]
	if !ok {
		return "", fmt.Errorf("llm: unknown analysis_type %q", t)
	}
	return instruction, nil
}
