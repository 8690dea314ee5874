package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/domain"
)

const Version = "v1"

type entry struct {
	compiled *jsonschema.Schema
	version  string
}

// Registry holds the compiled schema per analysis kind. Compilation happens
// once at construction so a malformed definition fails the process at startup
// instead of during a task.
type Registry struct {
	entries map[domain.AnalysisKind]entry
}

func NewRegistry() (*Registry, error) {
	definitions := map[domain.AnalysisKind]map[string]any{
		domain.KindDecisionLetter: decisionLetterSchema(),
		domain.KindRating:         ratingSchema(),
		domain.KindEvidenceGap:    evidenceGapSchema(),
	}

	entries := make(map[domain.AnalysisKind]entry, len(definitions))
	for kind, definition := range definitions {
		compiled, err := compile(string(kind), definition)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", kind, err)
		}
		entries[kind] = entry{compiled: compiled, version: Version}
	}
	return &Registry{entries: entries}, nil
}

func compile(name string, definition map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(definition)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	resource := name + ".json"
	if err := compiler.AddResource(resource, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return compiler.Compile(resource)
}

// Version reports the schema version tag for a kind, empty when unregistered.
func (r *Registry) Version(kind domain.AnalysisKind) string {
	return r.entries[kind].version
}

// Validate checks a payload against the kind's schema. Failures name the
// field path and violated constraint; the payload itself is never echoed back
// into the error chain.
func (r *Registry) Validate(kind domain.AnalysisKind, payload []byte) error {
	ent, ok := r.entries[kind]
	if !ok {
		return domain.WrapError(domain.ErrInvalidInput, "validate analysis", fmt.Errorf("no schema registered for kind %q", kind))
	}

	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		return domain.WrapError(domain.ErrSchemaValidation, "validate analysis", errors.New("payload is not valid JSON"))
	}
	if err := ent.compiled.Validate(value); err != nil {
		return domain.WrapError(domain.ErrSchemaValidation, "validate analysis", describeViolations(err))
	}
	return nil
}

// describeViolations flattens the validator's cause tree into
// "path: constraint" fragments.
func describeViolations(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	leaves := collectLeaves(ve)
	parts := make([]string, 0, len(leaves))
	for _, leaf := range leaves {
		location := leaf.InstanceLocation
		if location == "" {
			location = "/"
		}
		parts = append(parts, fmt.Sprintf("%s: %s", location, leaf.Message))
	}
	return errors.New(strings.Join(parts, "; "))
}

func collectLeaves(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var leaves []*jsonschema.ValidationError
	for _, cause := range ve.Causes {
		leaves = append(leaves, collectLeaves(cause)...)
	}
	return leaves
}

// DecodeDecisionLetter unmarshals an already validated payload into its typed
// form.
func DecodeDecisionLetter(payload []byte) (domain.DecisionLetterAnalysis, error) {
	var out domain.DecisionLetterAnalysis
	if err := json.Unmarshal(payload, &out); err != nil {
		return domain.DecisionLetterAnalysis{}, fmt.Errorf("decode decision_letter payload: %w", err)
	}
	return out, nil
}

func DecodeRating(payload []byte) (domain.RatingAnalysis, error) {
	var out domain.RatingAnalysis
	if err := json.Unmarshal(payload, &out); err != nil {
		return domain.RatingAnalysis{}, fmt.Errorf("decode rating payload: %w", err)
	}
	return out, nil
}

func DecodeEvidenceGap(payload []byte) (domain.EvidenceGapAnalysis, error) {
	var out domain.EvidenceGapAnalysis
	if err := json.Unmarshal(payload, &out); err != nil {
		return domain.EvidenceGapAnalysis{}, fmt.Errorf("decode evidence_gap payload: %w", err)
	}
	return out, nil
}
