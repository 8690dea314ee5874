// Package schema declares the structured-output contract for each analysis
// kind and validates provider payloads against it. Definitions are JSON-Schema
// (draft 2020-12 subset) kept as generic maps so they stay readable next to
// the typed variants in domain.
package schema

// Required fields, ranges and enums are strict. Unknown extra fields pass
// through unvalidated so newer provider output stays acceptable; none of the
// schemas set additionalProperties.

func decisionLetterSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"decision_status": map[string]any{
				"type": "string",
				"enum": []string{"granted", "denied", "deferred", "partial"},
			},
			"effective_date": map[string]any{
				"type":    "string",
				"pattern": `^\d{4}-\d{2}-\d{2}$`,
			},
			"conditions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name": map[string]any{
							"type":      "string",
							"minLength": 1,
							"maxLength": 200,
						},
						"rating_percent": map[string]any{
							"type":    "integer",
							"minimum": 0,
							"maximum": 100,
						},
						"status": map[string]any{
							"type": "string",
							"enum": []string{"granted", "denied", "deferred"},
						},
					},
					"required": []string{"name", "status"},
				},
			},
			"summary": map[string]any{
				"type":      "string",
				"minLength": 1,
				"maxLength": 2000,
			},
			"next_steps": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string", "maxLength": 300},
			},
		},
		"required": []string{"decision_status", "conditions", "summary"},
	}
}

func ratingSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"combined_rating": map[string]any{
				"type":    "integer",
				"minimum": 0,
				"maximum": 100,
			},
			"individual_ratings": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"condition": map[string]any{
							"type":      "string",
							"minLength": 1,
							"maxLength": 200,
						},
						"percentage": map[string]any{
							"type":    "integer",
							"minimum": 0,
							"maximum": 100,
						},
					},
					"required": []string{"condition", "percentage"},
				},
			},
			"summary": map[string]any{
				"type":      "string",
				"minLength": 1,
				"maxLength": 2000,
			},
		},
		"required": []string{"combined_rating", "individual_ratings", "summary"},
	}
}

func evidenceGapSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"readiness_score": map[string]any{
				"type":    "integer",
				"minimum": 0,
				"maximum": 100,
			},
			"readiness": map[string]any{
				"type": "string",
				"enum": []string{"ready", "needs_evidence", "not_ready"},
			},
			"missing_evidence": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string", "maxLength": 300},
			},
			"recommended_actions": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string", "maxLength": 300},
			},
			"summary": map[string]any{
				"type":      "string",
				"minLength": 1,
				"maxLength": 2000,
			},
		},
		"required": []string{"readiness_score", "readiness", "missing_evidence", "summary"},
	}
}
