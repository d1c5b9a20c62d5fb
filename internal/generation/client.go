// Package generation talks to the language-model backend that writes
// exercise content. Every result is validated before it is handed back;
// callers never see partially valid content.
package generation

import (
	"apphasia/exercise-engine/internal/domain"
	"context"
	"errors"
	"fmt"
)

var (
	// ErrMalformed marks model output with missing fields or wrong cardinalities.
	ErrMalformed = errors.New("malformed generation output")
	// ErrUnavailable marks transport failures and non-2xx answers from the backend.
	ErrUnavailable = errors.New("generation service unavailable")
)

// MalformedError describes which pipeline step produced unusable output.
type MalformedError struct {
	Step   string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrMalformed, e.Step, e.Reason)
}

func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }

func malformed(step, format string, args ...any) error {
	return &MalformedError{Step: step, Reason: fmt.Sprintf(format, args...)}
}

// VNESTResult is a validated verb-network exercise.
type VNESTResult struct {
	Verb           string
	Content        domain.VNESTContent
	AdaptationNote string // set by personalization only
}

// SRItem is one spaced-retrieval prompt with its expected answer.
type SRItem struct {
	Question string
	Answer   string
}

// Client generates structured exercise content.
type Client interface {
	// GenerateVNEST writes a new exercise around one verb that fits the context.
	GenerateVNEST(ctx context.Context, context string, level domain.Level) (*VNESTResult, error)
	// GenerateSR writes autobiographical recall prompts from a patient profile.
	GenerateSR(ctx context.Context, profile map[string]any) ([]SRItem, error)
	// PersonalizeVNEST rewrites a base exercise around the patient's life.
	PersonalizeVNEST(ctx context.Context, base *domain.CatalogExercise, profile map[string]any) (*VNESTResult, error)
	// StructureProfile extracts personal data, family, routines and objects from free text.
	StructureProfile(ctx context.Context, patientID, rawText string) (*domain.StructuredProfile, error)
}
