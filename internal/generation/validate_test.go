package generation

import (
	"apphasia/exercise-engine/internal/domain"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateVNEST(t *testing.T) {
	valid := func() domain.VNESTContent { return cannedVNEST("cortar", domain.LevelEasy, "cocina") }

	tests := []struct {
		name    string
		verb    string
		mutate  func(c *domain.VNESTContent)
		wantErr bool
	}{
		{name: "valid", verb: "cortar", mutate: func(c *domain.VNESTContent) {}},
		{name: "missing verb", verb: " ", mutate: func(c *domain.VNESTContent) {}, wantErr: true},
		{name: "no pairs", verb: "cortar", mutate: func(c *domain.VNESTContent) { c.Pairs = nil }, wantErr: true},
		{name: "nine sentences", verb: "cortar", mutate: func(c *domain.VNESTContent) { c.Sentences = c.Sentences[:9] }, wantErr: true},
		{name: "three options", verb: "cortar", mutate: func(c *domain.VNESTContent) {
			c.Pairs[0].Expansions.When.Options = c.Pairs[0].Expansions.When.Options[:3]
		}, wantErr: true},
		{name: "correct option missing", verb: "cortar", mutate: func(c *domain.VNESTContent) {
			c.Pairs[0].Expansions.Why.Correct = "otra cosa"
		}, wantErr: true},
		{name: "empty subject", verb: "cortar", mutate: func(c *domain.VNESTContent) { c.Pairs[0].Subject = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := ValidateVNEST(tt.verb, &c)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateSR(t *testing.T) {
	assert.ErrorIs(t, ValidateSR(nil), ErrMalformed)
	assert.ErrorIs(t, ValidateSR([]SRItem{{Question: "¿Dónde naciste?"}}), ErrMalformed)
	assert.NoError(t, ValidateSR([]SRItem{{Question: "¿Dónde naciste?", Answer: "Cali"}}))
}

func TestExtractJSON(t *testing.T) {
	tests := map[string]string{
		`{"a":1}`:                         `{"a":1}`,
		"```json\n{\"a\":1}\n```":         `{"a":1}`,
		"Here you go: {\"a\":{\"b\":2}} ok": `{"a":{"b":2}}`,
		"  {\"a\":1}  ":                   `{"a":1}`,
	}
	for in, want := range tests {
		assert.Equal(t, want, extractJSON(in), in)
	}
}

func TestValidateProfile(t *testing.T) {
	tests := []struct {
		name    string
		profile domain.StructuredProfile
		wantErr bool
	}{
		{name: "only a city", profile: domain.StructuredProfile{Personal: domain.PersonalInfo{City: "Cali"}}},
		{name: "nothing extracted", profile: domain.StructuredProfile{Routines: []domain.Routine{{Title: " ", Description: ""}}}, wantErr: true},
		{name: "relative without name", profile: domain.StructuredProfile{Family: []domain.Relative{{Description: "su hermano mayor"}}}, wantErr: true},
		{name: "routine without title", profile: domain.StructuredProfile{Routines: []domain.Routine{{Description: "camina"}}}, wantErr: true},
		{name: "object without name", profile: domain.StructuredProfile{Objects: []domain.PersonalObject{{Relation: "suyo", Description: "un reloj"}}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.profile
			NormalizeProfile(&p)
			err := ValidateProfile(&p)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMockStructureProfile(t *testing.T) {
	profile, err := NewMock().StructureProfile(context.Background(), "P", "Nombre: Ana\nciudad: Cali\n\nPasea al perro\nhobby: pintar")
	require.NoError(t, err)
	assert.Equal(t, "Ana", profile.Personal.Name)
	assert.Equal(t, "Cali", profile.Personal.City)
	assert.Equal(t, []domain.Routine{{Title: "nota", Description: "Pasea al perro"}, {Title: "hobby", Description: "pintar"}}, profile.Routines)

	_, err = NewMock().StructureProfile(context.Background(), "P", "  ")
	assert.ErrorIs(t, err, ErrMalformed)
}
