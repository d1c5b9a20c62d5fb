// internal/domain/exercise.go
package domain

import (
	"errors"
	"time"
)

// TherapyType selects which extended payload a catalog exercise carries.
type TherapyType string

const (
	TherapyVNEST TherapyType = "VNEST"
	TherapySR    TherapyType = "SR"
)

// Visibility controls who may be offered an exercise as new work.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Level is the difficulty band the generator targeted.
type Level string

const (
	LevelEasy   Level = "facil"
	LevelMedium Level = "medio"
	LevelHard   Level = "dificil"
)

// Valid reports whether l is one of the known difficulty bands.
func (l Level) Valid() bool {
	switch l {
	case LevelEasy, LevelMedium, LevelHard:
		return true
	}
	return false
}

// SRContext is the context spaced-retrieval prompts are filed under.
const SRContext = "recuerdo"

// SentenceCount is the number of judgement sentences every VNEST exercise carries.
const SentenceCount = 10

// OptionsPerQuestion is the number of choices offered for each expansion question.
const OptionsPerQuestion = 4

var ErrInvalidExercise = errors.New("invalid catalog exercise")

// CatalogExercise is one generated exercise in the catalog.
// The selection engine only looks at the metadata; the payload is opaque to it.
type CatalogExercise struct {
	ID          string      `bson:"_id" json:"id"`
	TherapyType TherapyType `bson:"therapyType" json:"therapyType"`
	Context     string      `bson:"context" json:"context"`
	Verb        string      `bson:"verb,omitempty" json:"verb,omitempty"` // VNEST only
	Visibility  Visibility  `bson:"visibility" json:"visibility"`
	Reviewed    bool        `bson:"reviewed" json:"reviewed"`
	CreatedBy   string      `bson:"createdBy,omitempty" json:"createdBy,omitempty"`

	// Personalization. OwnerPatientID and BaseReferenceID are set iff Personalized.
	Personalized    bool    `bson:"personalized" json:"personalized"`
	OwnerPatientID  *string `bson:"ownerPatientId,omitempty" json:"ownerPatientId,omitempty"`
	BaseReferenceID *string `bson:"baseReferenceId,omitempty" json:"baseReferenceId,omitempty"`
	AdaptationNote  string  `bson:"adaptationNote,omitempty" json:"adaptationNote,omitempty"`

	VNEST *VNESTContent `bson:"vnest,omitempty" json:"vnest,omitempty"`
	SR    *SRContent    `bson:"sr,omitempty" json:"sr,omitempty"`

	ArchiveKey string    `bson:"archiveKey,omitempty" json:"-"` // object key of the archived payload
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt" json:"updatedAt"`
}

// VNESTContent is the verb-network payload: subject/object pairs with
// where/when/why expansions plus sentences to judge.
type VNESTContent struct {
	Level     Level      `bson:"level,omitempty" json:"level,omitempty"`
	Pairs     []Pair     `bson:"pairs" json:"pairs"`
	Sentences []Sentence `bson:"sentences" json:"sentences"`
}

type Pair struct {
	Subject    string     `bson:"subject" json:"subject"`
	Object     string     `bson:"object" json:"object"`
	Expansions Expansions `bson:"expansions" json:"expansions"`
}

type Expansions struct {
	Where Question `bson:"where" json:"where"`
	When  Question `bson:"when" json:"when"`
	Why   Question `bson:"why" json:"why"`
}

// Question is a multiple-choice elaboration with exactly one correct option.
type Question struct {
	Options []string `bson:"options" json:"options"`
	Correct string   `bson:"correct" json:"correct"`
}

type Sentence struct {
	Text    string `bson:"text" json:"text"`
	Correct bool   `bson:"correct" json:"correct"`
}

// SRContent is a spaced-retrieval autobiographical prompt.
type SRContent struct {
	Question string `bson:"question" json:"question"`
	Answer   string `bson:"answer" json:"answer"`
}

// Validate checks the structural invariants of the catalog entry.
func (e *CatalogExercise) Validate() error {
	if e.ID == "" {
		return errors.Join(ErrInvalidExercise, errors.New("id is required"))
	}
	switch e.TherapyType {
	case TherapyVNEST:
		if e.VNEST == nil {
			return errors.Join(ErrInvalidExercise, errors.New("VNEST exercise without VNEST content"))
		}
	case TherapySR:
		if e.SR == nil {
			return errors.Join(ErrInvalidExercise, errors.New("SR exercise without SR content"))
		}
	default:
		return errors.Join(ErrInvalidExercise, errors.New("unknown therapy type"))
	}
	if e.Visibility != VisibilityPublic && e.Visibility != VisibilityPrivate {
		return errors.Join(ErrInvalidExercise, errors.New("unknown visibility"))
	}
	if e.Personalized && (e.OwnerPatientID == nil || e.BaseReferenceID == nil) {
		return errors.Join(ErrInvalidExercise, errors.New("personalized exercise needs owner and base reference"))
	}
	return nil
}

// OfferableTo reports whether the exercise may be handed to patientID as a
// new assignment. Private entries are only ever offered to their owner.
func (e *CatalogExercise) OfferableTo(patientID string) bool {
	if e.Visibility != VisibilityPrivate {
		return true
	}
	return e.OwnerPatientID != nil && *e.OwnerPatientID == patientID
}

// OwnedBy reports whether the exercise was personalized for patientID.
func (e *CatalogExercise) OwnedBy(patientID string) bool {
	return e.OwnerPatientID != nil && *e.OwnerPatientID == patientID
}
