package generation

import (
	"apphasia/exercise-engine/internal/domain"
	"apphasia/exercise-engine/internal/logger"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatServer answers each chat completion with the next canned content.
type chatServer struct {
	mu       sync.Mutex
	replies  []string
	requests []chatRequest
	headers  []http.Header
	paths    []string
}

func (s *chatServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		s.requests = append(s.requests, req)
		s.headers = append(s.headers, r.Header.Clone())
		s.paths = append(s.paths, r.URL.String())

		if len(s.replies) == 0 {
			http.Error(w, "no more replies", http.StatusInternalServerError)
			return
		}
		content := s.replies[0]
		s.replies = s.replies[1:]
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func vnestReplies(t *testing.T, sentences int) []string {
	content := cannedVNEST("cortar", domain.LevelEasy, "cocina")
	for len(content.Sentences) > sentences {
		content.Sentences = content.Sentences[:sentences]
	}
	return []string{
		mustJSON(t, map[string]any{"context": "cocina", "verbs": []string{"cortar", "pelar", "hervir", "freír", "lavar", "servir", "mezclar"}}),
		mustJSON(t, map[string]any{"classified": map[string][]string{"facil": {"cortar", "lavar"}, "medio": {"pelar", "servir"}, "dificil": {"hervir", "freír", "mezclar"}}}),
		mustJSON(t, map[string]any{"level": "facil", "selected_verb": "cortar", "sentences": []svoSentence{
			{Sentence: "El cocinero corta la cebolla", Subject: "cocinero", Object: "cebolla"},
			{Sentence: "El carnicero corta la carne", Subject: "carnicero", Object: "carne"},
			{Sentence: "El jardinero corta el césped", Subject: "jardinero", Object: "césped"},
		}}),
		mustJSON(t, expansionOutput{Verb: "cortar", Pairs: content.Pairs}),
		"```json\n" + mustJSON(t, vnestOutput{Verb: "Cortar", Pairs: content.Pairs, Sentences: content.Sentences}) + "\n```",
	}
}

func newTestClient(t *testing.T, srv *chatServer, cfg OpenAIConfig) Client {
	ts := httptest.NewServer(srv.handler(t))
	t.Cleanup(ts.Close)
	cfg.Endpoint = ts.URL
	return NewOpenAI(cfg, ts.Client(), logger.NewNop())
}

func TestOpenAIClient_GenerateVNEST(t *testing.T) {
	srv := &chatServer{replies: vnestReplies(t, domain.SentenceCount)}
	client := newTestClient(t, srv, OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o"})

	res, err := client.GenerateVNEST(context.Background(), "cocina", "")
	require.NoError(t, err)

	assert.Equal(t, "cortar", res.Verb)
	assert.Equal(t, domain.LevelEasy, res.Content.Level)
	assert.Len(t, res.Content.Sentences, domain.SentenceCount)
	require.Len(t, srv.requests, 5)
	assert.Equal(t, "gpt-4o", srv.requests[0].Model)
	assert.Equal(t, "json_object", srv.requests[0].ResponseFormat["type"])
	assert.Equal(t, "Bearer sk-test", srv.headers[0].Get("Authorization"))
	assert.Equal(t, "/v1/chat/completions", srv.paths[0])
}

func TestOpenAIClient_GenerateVNESTRejectsWrongSentenceCount(t *testing.T) {
	srv := &chatServer{replies: vnestReplies(t, 9)}
	client := newTestClient(t, srv, OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o"})

	res, err := client.GenerateVNEST(context.Background(), "cocina", domain.LevelEasy)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestOpenAIClient_GenerateVNESTRejectsShortVerbList(t *testing.T) {
	srv := &chatServer{replies: []string{`{"verbs":["cortar","pelar"]}`}}
	client := newTestClient(t, srv, OpenAIConfig{Model: "gpt-4o"})

	_, err := client.GenerateVNEST(context.Background(), "cocina", domain.LevelEasy)
	var me *MalformedError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "verbs", me.Step)
	assert.Len(t, srv.requests, 1)
}

func TestOpenAIClient_UpstreamFailure(t *testing.T) {
	srv := &chatServer{}
	client := newTestClient(t, srv, OpenAIConfig{Model: "gpt-4o"})

	_, err := client.GenerateSR(context.Background(), map[string]any{"name": "Ana"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, ErrMalformed)
}

func TestOpenAIClient_GenerateSRUsesAzureLayout(t *testing.T) {
	srv := &chatServer{replies: []string{
		`{"cards":[{"stimulus":" ¿Cómo se llama tu hija? ","answer":"Lucía"},{"stimulus":"¿Dónde vives?","answer":"Bogotá"}]}`,
	}}
	client := newTestClient(t, srv, OpenAIConfig{APIKey: "azure-key", Model: "gpt4o-deploy", APIVersion: "2024-02-01"})

	items, err := client.GenerateSR(context.Background(), map[string]any{"name": "Ana"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, SRItem{Question: "¿Cómo se llama tu hija?", Answer: "Lucía"}, items[0])

	assert.Equal(t, "azure-key", srv.headers[0].Get("api-key"))
	assert.Empty(t, srv.headers[0].Get("Authorization"))
	assert.Empty(t, srv.requests[0].Model)
	assert.Equal(t, "/openai/deployments/gpt4o-deploy/chat/completions?api-version=2024-02-01", srv.paths[0])
}

func TestOpenAIClient_PersonalizeVNEST(t *testing.T) {
	content := cannedVNEST("cortar", domain.LevelMedium, "cocina")
	srv := &chatServer{replies: []string{
		mustJSON(t, vnestOutput{Verb: "cortar", Pairs: content.Pairs, Sentences: content.Sentences, AdaptationNote: " usa el nombre de su nieta "}),
	}}
	client := newTestClient(t, srv, OpenAIConfig{Model: "gpt-4o"})

	base := &domain.CatalogExercise{ID: "E1A2B3C", Verb: "cortar", Context: "cocina", VNEST: &content}
	res, err := client.PersonalizeVNEST(context.Background(), base, map[string]any{"name": "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "usa el nombre de su nieta", res.AdaptationNote)
	assert.Equal(t, domain.LevelMedium, res.Content.Level)

	_, err = client.PersonalizeVNEST(context.Background(), &domain.CatalogExercise{ID: "S1"}, nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestOpenAIClient_StructureProfile(t *testing.T) {
	srv := &chatServer{replies: []string{
		`{"personal":{"name":" Ana Gómez ","birth_date":"","birth_place":"Pasto","city":"Cali"},` +
			`"family":[{"name":"Lucía","relation":"Hija","description":"vive en Bogotá"},{"name":"Jorge","relation":"Cónyuge/Pareja","description":""}],` +
			`"routines":[{"title":"Caminar","description":"cada mañana por el parque"},{"title":"","description":""}],` +
			`"objects":[{"name":"guitarra","relation":"regalo de su padre","description":""}]}`,
	}}
	client := newTestClient(t, srv, OpenAIConfig{Model: "gpt-4o"})

	profile, err := client.StructureProfile(context.Background(), "P1", "Me llamo Ana, vivo en Cali...")
	require.NoError(t, err)
	assert.Equal(t, "Ana Gómez", profile.Personal.Name)
	require.Len(t, profile.Family, 2)
	assert.Equal(t, domain.RelationOther, profile.Family[0].Relation)
	assert.Equal(t, domain.RelationPartner, profile.Family[1].Relation)
	assert.Len(t, profile.Routines, 1)
	assert.Len(t, profile.Objects, 1)

	require.Len(t, srv.requests, 1)
	assert.Contains(t, srv.requests[0].Messages[1].Content, "Me llamo Ana, vivo en Cali...")
	assert.Contains(t, srv.requests[0].Messages[1].Content, "P1")
}

func TestOpenAIClient_StructureProfileRejectsEmptyExtraction(t *testing.T) {
	srv := &chatServer{replies: []string{`{"personal":{},"family":[],"routines":[],"objects":[]}`}}
	client := newTestClient(t, srv, OpenAIConfig{Model: "gpt-4o"})

	_, err := client.StructureProfile(context.Background(), "P1", "...")
	assert.ErrorIs(t, err, ErrMalformed)
}
