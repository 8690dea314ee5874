package domain

import "encoding/json"

// AnalysisResult is the validated structured output attached to a document.
// Exactly one per document; a retried cycle overwrites the previous result.
type AnalysisResult struct {
	Kind          AnalysisKind    `json:"kind"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

type ConditionDecision struct {
	Name          string `json:"name"`
	RatingPercent int    `json:"rating_percent"`
	Status        string `json:"status"`
}

type DecisionLetterAnalysis struct {
	DecisionStatus string              `json:"decision_status"`
	EffectiveDate  string              `json:"effective_date,omitempty"`
	Conditions     []ConditionDecision `json:"conditions"`
	Summary        string              `json:"summary"`
	NextSteps      []string            `json:"next_steps,omitempty"`
}

type IndividualRating struct {
	Condition  string `json:"condition"`
	Percentage int    `json:"percentage"`
}

type RatingAnalysis struct {
	CombinedRating    int                `json:"combined_rating"`
	IndividualRatings []IndividualRating `json:"individual_ratings"`
	Summary           string             `json:"summary"`
}

type EvidenceGapAnalysis struct {
	ReadinessScore     int      `json:"readiness_score"`
	Readiness          string   `json:"readiness"`
	MissingEvidence    []string `json:"missing_evidence"`
	RecommendedActions []string `json:"recommended_actions,omitempty"`
	Summary            string   `json:"summary"`
}
