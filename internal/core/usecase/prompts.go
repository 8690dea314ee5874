package usecase

import (
	"fmt"

	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/domain"
)

// maxSnippet bounds the document text handed to the provider; longer
// documents are truncated, not rejected.
const maxSnippet = 24000

func buildAnalysisRequest(kind domain.AnalysisKind, extracted domain.ExtractedDocument) domain.CompletionRequest {
	return domain.CompletionRequest{
		Operation: "analyze_" + string(kind),
		System:    systemPrompt(kind),
		Prompt:    userPrompt(extracted),
	}
}

func systemPrompt(kind domain.AnalysisKind) string {
	switch kind {
	case domain.KindDecisionLetter:
		return `You analyze veterans-benefits decision letters.
Return strict JSON object with keys:
decision_status (one of granted, denied, deferred, partial), effective_date (YYYY-MM-DD), conditions (array of objects with name, rating_percent integer 0-100, status one of granted, denied, deferred), summary (string), next_steps (array of strings).
No markdown, no extra keys, no commentary.`
	case domain.KindRating:
		return `You analyze veterans-benefits rating documents.
Return strict JSON object with keys:
combined_rating (integer 0-100), individual_ratings (array of objects with condition and percentage integer 0-100), summary (string).
No markdown, no extra keys, no commentary.`
	case domain.KindEvidenceGap:
		return `You assess evidence readiness of veterans-benefits claims.
Return strict JSON object with keys:
readiness_score (integer 0-100), readiness (one of ready, needs_evidence, not_ready), missing_evidence (array of strings), recommended_actions (array of strings), summary (string).
No markdown, no extra keys, no commentary.`
	default:
		return "Return a strict JSON object describing the document. No markdown."
	}
}

func userPrompt(extracted domain.ExtractedDocument) string {
	snippet := extracted.Text
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}

	return fmt.Sprintf(`Document (%d pages, extraction confidence %.2f):

%s`, extracted.PageCount, extracted.Confidence, snippet)
}
