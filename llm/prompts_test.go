package llm

import "testing"

func TestValidAnalysisType(t *testing.T) {
	valid := []string{"summary", "literature_review", "key_findings", "methodology",
		"results_analysis", "limitations", "future_work", "custom"}
	for _, v := range valid {
		if !ValidAnalysisType(v) {
			t.Errorf("expected %q to be valid", v)
		}
	}
	if ValidAnalysisType("not_a_type") {
		t.Error("expected unknown type to be invalid")
	}
}

func TestBuildPrompt_CustomRequiresPrompt(t *testing.T) {
	if _, err := buildPrompt(AnalysisCustom, ""); err == nil {
		t.Error("expected error for empty custom prompt")
	}
	got, err := buildPrompt(AnalysisCustom, "do X")
	if err != nil || got != "do X" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestBuildPrompt_KnownTypes(t *testing.T) {
	got, err := buildPrompt(AnalysisSummary, "")
	if err != nil || got == "" {
		t.Errorf("got %q, %v", got, err)
	}
}
