package generation

import (
	"apphasia/exercise-engine/internal/domain"
	"context"
	"fmt"
	"sort"
	"strings"
)

// MockClient returns canned, always valid content. It backs local runs
// without a model and the service tests. Setting Err makes every call fail.
type MockClient struct {
	Err error
}

func NewMock() *MockClient { return &MockClient{} }

func (m *MockClient) GenerateVNEST(ctx context.Context, exerciseContext string, level domain.Level) (*VNESTResult, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	verb := "preparar"
	return &VNESTResult{Verb: verb, Content: cannedVNEST(verb, levelOrDefault(level), exerciseContext)}, nil
}

func (m *MockClient) GenerateSR(ctx context.Context, profile map[string]any) ([]SRItem, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	keys := make([]string, 0, len(profile))
	for k := range profile {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := []SRItem{}
	for _, k := range keys {
		v, ok := profile[k].(string)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		items = append(items, SRItem{Question: fmt.Sprintf("¿Cuál es tu %s?", k), Answer: v})
	}
	if len(items) == 0 {
		items = append(items, SRItem{Question: "¿Cómo te llamas?", Answer: "(nombre)"})
	}
	return items, nil
}

func (m *MockClient) PersonalizeVNEST(ctx context.Context, base *domain.CatalogExercise, profile map[string]any) (*VNESTResult, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if base == nil || base.VNEST == nil {
		return nil, malformed("personalize", "base exercise has no VNEST content")
	}
	name, _ := profile["name"].(string)
	content := cannedVNEST(base.Verb, base.VNEST.Level, base.Context)
	if name != "" {
		content.Pairs[0].Subject = name
	}
	return &VNESTResult{Verb: base.Verb, Content: content, AdaptationNote: "mock personalization"}, nil
}

// StructureProfile reads "key: value" lines. nombre/name and ciudad/city
// fill the personal section; every other line becomes a routine.
func (m *MockClient) StructureProfile(ctx context.Context, patientID, rawText string) (*domain.StructuredProfile, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	profile := &domain.StructuredProfile{}
	for _, line := range strings.Split(rawText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			profile.Routines = append(profile.Routines, domain.Routine{Title: "nota", Description: line})
			continue
		}
		key, value = strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value)
		switch key {
		case "nombre", "name":
			profile.Personal.Name = value
		case "ciudad", "city":
			profile.Personal.City = value
		default:
			profile.Routines = append(profile.Routines, domain.Routine{Title: key, Description: value})
		}
	}
	NormalizeProfile(profile)
	if err := ValidateProfile(profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func cannedVNEST(verb string, level domain.Level, exerciseContext string) domain.VNESTContent {
	q := func(correct string, others ...string) domain.Question {
		return domain.Question{Options: append([]string{correct}, others...), Correct: correct}
	}
	sentences := make([]domain.Sentence, 0, domain.SentenceCount)
	for i := 0; i < domain.SentenceCount; i++ {
		if i%2 == 0 {
			sentences = append(sentences, domain.Sentence{Text: fmt.Sprintf("El cocinero va a %s la comida %d", verb, i), Correct: true})
		} else {
			sentences = append(sentences, domain.Sentence{Text: fmt.Sprintf("La piedra va a %s la luna %d", verb, i), Correct: false})
		}
	}
	return domain.VNESTContent{
		Level: level,
		Pairs: []domain.Pair{{
			Subject: "cocinero",
			Object:  "comida",
			Expansions: domain.Expansions{
				Where: q("en la cocina", "en el mar", "en la luna", "en el tejado"),
				When:  q("al mediodía", "nunca", "ayer del futuro", "en sueños"),
				Why:   q("para " + exerciseContext, "por la lluvia", "por el color", "sin razón"),
			},
		}},
		Sentences: sentences,
	}
}
