package generation

import (
	"apphasia/exercise-engine/internal/domain"
	"apphasia/exercise-engine/internal/logger"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OpenAIConfig points the client at an OpenAI compatible chat completions API.
// When APIVersion is set the Azure OpenAI URL layout and api-key header are used
// and Model names the deployment.
type OpenAIConfig struct {
	Endpoint    string
	APIKey      string
	Model       string
	APIVersion  string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type openAIClient struct {
	cfg  OpenAIConfig
	http *http.Client
	log  *logger.Logger
}

// NewOpenAI creates a generation client. A nil httpClient gets one with cfg.Timeout.
func NewOpenAI(cfg OpenAIConfig, httpClient *http.Client, log *logger.Logger) Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2100
	}
	return &openAIClient{cfg: cfg, http: httpClient, log: log.With("component", "generation")}
}

type svoSentence struct {
	Sentence string `json:"sentence"`
	Subject  string `json:"subject"`
	Object   string `json:"object"`
}

type expansionOutput struct {
	Verb  string        `json:"verb"`
	Pairs []domain.Pair `json:"pairs"`
}

type vnestOutput struct {
	Verb           string            `json:"verb"`
	Pairs          []domain.Pair     `json:"pairs"`
	Sentences      []domain.Sentence `json:"sentences"`
	AdaptationNote string            `json:"adaptation_note,omitempty"`
}

// GenerateVNEST runs the five step pipeline: candidate verbs, difficulty
// classification, verb and SVO selection, expansions, judgement sentences.
func (c *openAIClient) GenerateVNEST(ctx context.Context, exerciseContext string, level domain.Level) (*VNESTResult, error) {
	level = levelOrDefault(level)

	var verbs struct {
		Verbs []string `json:"verbs"`
	}
	if err := c.run(ctx, "verbs", systemVNEST, verbsPrompt(exerciseContext), &verbs); err != nil {
		return nil, err
	}
	if len(verbs.Verbs) != verbCount {
		return nil, malformed("verbs", "got %d verbs, want %d", len(verbs.Verbs), verbCount)
	}

	var classified struct {
		Classified map[string][]string `json:"classified"`
	}
	if err := c.run(ctx, "classify", systemVNEST, classifyPrompt(exerciseContext, verbs.Verbs), &classified); err != nil {
		return nil, err
	}
	if !anyVerbs(classified.Classified) {
		return nil, malformed("classify", "no classified verbs")
	}

	var selected struct {
		SelectedVerb string        `json:"selected_verb"`
		Sentences    []svoSentence `json:"sentences"`
	}
	if err := c.run(ctx, "select", systemVNEST, selectPrompt(exerciseContext, classified.Classified, level), &selected); err != nil {
		return nil, err
	}
	if strings.TrimSpace(selected.SelectedVerb) == "" || len(selected.Sentences) != svoSentenceCount {
		return nil, malformed("select", "want a verb and %d sentences, got %q and %d", svoSentenceCount, selected.SelectedVerb, len(selected.Sentences))
	}

	var expanded expansionOutput
	if err := c.run(ctx, "expand", systemVNEST, expansionPrompt(selected.SelectedVerb, selected.Sentences), &expanded); err != nil {
		return nil, err
	}
	if expanded.Verb == "" {
		expanded.Verb = selected.SelectedVerb
	}

	var final vnestOutput
	if err := c.run(ctx, "sentences", systemVNEST, sentencesPrompt(expanded), &final); err != nil {
		return nil, err
	}

	verb := normalizeVerb(final.Verb)
	if verb == "" {
		verb = normalizeVerb(selected.SelectedVerb)
	}
	content := domain.VNESTContent{Level: level, Pairs: final.Pairs, Sentences: final.Sentences}
	if err := ValidateVNEST(verb, &content); err != nil {
		return nil, err
	}
	return &VNESTResult{Verb: verb, Content: content}, nil
}

// GenerateSR turns a patient profile into recall prompts.
func (c *openAIClient) GenerateSR(ctx context.Context, profile map[string]any) ([]SRItem, error) {
	var out struct {
		Cards []struct {
			Stimulus string `json:"stimulus"`
			Answer   string `json:"answer"`
		} `json:"cards"`
	}
	if err := c.run(ctx, "sr", systemSR, srPrompt(profile), &out); err != nil {
		return nil, err
	}
	items := make([]SRItem, 0, len(out.Cards))
	for _, card := range out.Cards {
		items = append(items, SRItem{Question: strings.TrimSpace(card.Stimulus), Answer: strings.TrimSpace(card.Answer)})
	}
	if err := ValidateSR(items); err != nil {
		return nil, err
	}
	return items, nil
}

// PersonalizeVNEST adapts a base VNEST exercise to the patient profile.
func (c *openAIClient) PersonalizeVNEST(ctx context.Context, base *domain.CatalogExercise, profile map[string]any) (*VNESTResult, error) {
	if base == nil || base.VNEST == nil {
		return nil, malformed("personalize", "base exercise has no VNEST content")
	}
	var out vnestOutput
	if err := c.run(ctx, "personalize", systemPersonal, personalizePrompt(base, profile), &out); err != nil {
		return nil, err
	}
	verb := normalizeVerb(out.Verb)
	if verb == "" {
		verb = base.Verb
	}
	content := domain.VNESTContent{Level: base.VNEST.Level, Pairs: out.Pairs, Sentences: out.Sentences}
	if err := ValidateVNEST(verb, &content); err != nil {
		return nil, err
	}
	return &VNESTResult{Verb: verb, Content: content, AdaptationNote: strings.TrimSpace(out.AdaptationNote)}, nil
}

// StructureProfile extracts a structured biography from the therapist's notes.
func (c *openAIClient) StructureProfile(ctx context.Context, patientID, rawText string) (*domain.StructuredProfile, error) {
	var out domain.StructuredProfile
	if err := c.run(ctx, "profile", systemProfile, profilePrompt(patientID, rawText), &out); err != nil {
		return nil, err
	}
	NormalizeProfile(&out)
	if err := ValidateProfile(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model,omitempty"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// run sends one prompt and decodes the JSON answer into out.
func (c *openAIClient) run(ctx context.Context, step, system, prompt string, out any) error {
	reqBody := chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature:    c.cfg.Temperature,
		MaxTokens:      c.cfg.MaxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	if c.cfg.APIVersion == "" {
		reqBody.Model = c.cfg.Model
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIVersion != "" {
		req.Header.Set("api-key", c.cfg.APIKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, step, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s: status %d: %s", ErrUnavailable, step, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return malformed(step, "undecodable response: %v", err)
	}
	if len(chat.Choices) == 0 {
		return malformed(step, "no choices")
	}
	c.log.Debug("generation step finished", "step", step, "elapsed_ms", time.Since(started).Milliseconds())
	return decodeContent(step, chat.Choices[0].Message.Content, out)
}

func (c *openAIClient) url() string {
	base := strings.TrimRight(c.cfg.Endpoint, "/")
	if c.cfg.APIVersion != "" {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			base, url.PathEscape(c.cfg.Model), url.QueryEscape(c.cfg.APIVersion))
	}
	return base + "/v1/chat/completions"
}

func anyVerbs(classified map[string][]string) bool {
	for _, v := range classified {
		if len(v) > 0 {
			return true
		}
	}
	return false
}
