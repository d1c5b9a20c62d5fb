package domain

import (
	"encoding/json"
	"time"
)

// Patient is a person in therapy. Profile holds the free-form biography
// used to personalize exercises (family, hobbies, routines, ...).
type Patient struct {
	ID      string         `bson:"_id" json:"id"`
	Name    string         `bson:"name" json:"name"`
	Profile map[string]any `bson:"profile,omitempty" json:"profile,omitempty"`
	// ProfileNotes is the therapist's free text the structured profile was extracted from.
	ProfileNotes      string             `bson:"profileNotes,omitempty" json:"profileNotes,omitempty"`
	StructuredProfile *StructuredProfile `bson:"structuredProfile,omitempty" json:"structuredProfile,omitempty"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Relations a family member may have. Anything else is stored as RelationOther.
const (
	RelationPartner = "Cónyuge/Pareja"
	RelationChild   = "Hijo/a"
	RelationParent  = "Padre/Madre"
	RelationSibling = "Hermano/a"
	RelationOther   = "Otro"
)

var FamilyRelations = []string{RelationPartner, RelationChild, RelationParent, RelationSibling, RelationOther}

type PersonalInfo struct {
	Name       string `bson:"name" json:"name"`
	BirthDate  string `bson:"birthDate" json:"birth_date"`
	BirthPlace string `bson:"birthPlace" json:"birth_place"`
	City       string `bson:"city" json:"city"`
}

type Relative struct {
	Name        string `bson:"name" json:"name"`
	Relation    string `bson:"relation" json:"relation"`
	Description string `bson:"description" json:"description"`
}

type Routine struct {
	Title       string `bson:"title" json:"title"`
	Description string `bson:"description" json:"description"`
}

type PersonalObject struct {
	Name        string `bson:"name" json:"name"`
	Relation    string `bson:"relation" json:"relation"`
	Description string `bson:"description" json:"description"`
}

// StructuredProfile is the patient biography split into the sections the
// exercise generators draw from.
type StructuredProfile struct {
	Personal PersonalInfo     `bson:"personal" json:"personal"`
	Family   []Relative       `bson:"family" json:"family"`
	Routines []Routine        `bson:"routines" json:"routines"`
	Objects  []PersonalObject `bson:"objects" json:"objects"`
}

// Empty reports whether no fact at all was extracted.
func (p *StructuredProfile) Empty() bool {
	if p == nil {
		return true
	}
	pi := p.Personal
	return pi.Name == "" && pi.BirthDate == "" && pi.BirthPlace == "" && pi.City == "" &&
		len(p.Family) == 0 && len(p.Routines) == 0 && len(p.Objects) == 0
}

// ProfileFields flattens the structured profile into Profile keys: one per
// section plus "name" and "city" for the generators that read plain strings.
func (p *StructuredProfile) ProfileFields() map[string]any {
	fields := map[string]any{}
	if p == nil {
		return fields
	}
	b, err := json.Marshal(p)
	if err != nil {
		return fields
	}
	_ = json.Unmarshal(b, &fields)
	if p.Personal.Name != "" {
		fields["name"] = p.Personal.Name
	}
	if p.Personal.City != "" {
		fields["city"] = p.Personal.City
	}
	return fields
}
