package generation

import (
	"apphasia/exercise-engine/internal/domain"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	systemVNEST    = "You are a speech-language therapist who writes VNeST (Verb Network Strengthening Treatment) exercises in Spanish for people with aphasia. Reply with JSON only."
	systemSR       = "You are a speech-language therapist who writes spaced-retrieval prompts in Spanish for people with aphasia. Reply with JSON only."
	systemPersonal = "You are a speech-language therapist who adapts therapy exercises to a patient's life. Reply with JSON only."
	systemProfile  = "You are an assistant who structures the clinical and personal profiles of people with aphasia. Reply with JSON only."

	verbCount        = 7
	svoSentenceCount = 3
)

const pairSchema = `{"subject":"string","object":"string","expansions":{` +
	`"where":{"options":["s","s","s","s"],"correct":"s"},` +
	`"when":{"options":["s","s","s","s"],"correct":"s"},` +
	`"why":{"options":["s","s","s","s"],"correct":"s"}}}`

func verbsPrompt(context string) string {
	return fmt.Sprintf(
		"Context: %q. List exactly %d everyday transitive verbs in the infinitive that clearly belong to this context. "+
			"Avoid generic verbs such as hacer, tener or llevar; mix difficulties. "+
			`Format: {"context":"string","verbs":["v1",...]}`,
		context, verbCount)
}

func classifyPrompt(context string, verbs []string) string {
	b, _ := json.Marshal(verbs)
	return fmt.Sprintf(
		"Classify these verbs for the context %q by difficulty: facil (1-2 syllables, very common), "+
			"medio (2-3 syllables), dificil (3+ syllables or harder to say). Keep the split balanced. "+
			`Verbs: %s. Format: {"classified":{"facil":[],"medio":[],"dificil":[]}}`,
		context, b)
}

func selectPrompt(context string, classified map[string][]string, level domain.Level) string {
	b, _ := json.Marshal(classified)
	return fmt.Sprintf(
		"Context: %q. Classified verbs: %s. Requested level: %s. "+
			"Pick ONE verb of that level and write exactly %d simple subject-verb-object sentences with it. "+
			"Subjects must be typical agents and objects typical patients of the verb; no subject or object may be swapped "+
			"between sentences and still make sense; exactly one sentence relates to the context; no pronouns or proper names. "+
			`Format: {"level":"%s","selected_verb":"string","sentences":[{"sentence":"s","subject":"s","object":"s"}]}`,
		context, b, level, svoSentenceCount, level)
}

func expansionPrompt(verb string, svo []svoSentence) string {
	b, _ := json.Marshal(svo)
	return fmt.Sprintf(
		"Verb: %q. Sentences: %s. For EACH subject/object pair write three questions (where, when, why), "+
			"each with exactly %d concrete options of which only one is correct. Do not change verb, subject or object. "+
			`Format: {"verb":"%s","pairs":[%s]}`,
		verb, b, domain.OptionsPerQuestion, verb, pairSchema)
}

func sentencesPrompt(prev expansionOutput) string {
	b, _ := json.Marshal(prev)
	return fmt.Sprintf(
		"Take this JSON and add a \"sentences\" list without changing existing keys: %s. "+
			"Write exactly %d simple subject-verb-complement sentences with the same verb, correctly conjugated, "+
			"mixing sensible (correct=true) and absurd (correct=false) ones. Spelling never decides correctness. "+
			`Format: {"verb":"s","pairs":[...],"sentences":[{"text":"s","correct":true}]}`,
		b, domain.SentenceCount)
}

func srPrompt(profile map[string]any) string {
	b, _ := json.Marshal(profile)
	return fmt.Sprintf(
		"Patient profile: %s. Write short autobiographical recall questions whose answers come straight from the profile "+
			"(names of family members, places, routines, hobbies). One fact per card, answers of one to three words. "+
			`Format: {"cards":[{"stimulus":"question","answer":"expected answer"}]}`,
		b)
}

func personalizePrompt(base *domain.CatalogExercise, profile map[string]any) string {
	ex, _ := json.Marshal(struct {
		Context string               `json:"context"`
		Verb    string               `json:"verb"`
		Content *domain.VNESTContent `json:"content"`
	}{base.Context, base.Verb, base.VNEST})
	p, _ := json.Marshal(profile)
	return fmt.Sprintf(
		"Base exercise: %s. Patient profile: %s. Rewrite subjects, objects, options and sentences so they mention people, "+
			"places and activities from the patient's life. Keep the same verb, the same number of pairs, %d options per question "+
			"and exactly %d sentences. Explain the adaptation in one sentence. "+
			`Format: {"verb":"s","pairs":[%s],"sentences":[{"text":"s","correct":true}],"adaptation_note":"s"}`,
		ex, p, domain.OptionsPerQuestion, domain.SentenceCount, pairSchema)
}

func profilePrompt(patientID, rawText string) string {
	relations, _ := json.Marshal(domain.FamilyRelations)
	return fmt.Sprintf(
		"Turn this free autobiographical text into a structured profile. Use ONLY facts present in the text; leave fields "+
			"empty or lists empty when something is not mentioned. Never put a city in a person's name or the other way round. "+
			"Include every person, routine and object mentioned. Family relation must be one of %s and the description must "+
			"not repeat it; object relation is free text. "+
			`Format: {"personal":{"name":"","birth_date":"","birth_place":"","city":""},`+
			`"family":[{"name":"","relation":"","description":""}],`+
			`"routines":[{"title":"","description":""}],`+
			`"objects":[{"name":"","relation":"","description":""}]}. `+
			"Patient ID: %s. Text: %q",
		relations, patientID, rawText)
}

func levelOrDefault(l domain.Level) domain.Level {
	if l.Valid() {
		return l
	}
	return domain.LevelEasy
}

func normalizeVerb(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
