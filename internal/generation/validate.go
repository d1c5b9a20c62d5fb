package generation

import (
	"apphasia/exercise-engine/internal/domain"
	"slices"
	"strings"
)

// ValidateVNEST checks the cardinalities the exercise screens rely on:
// a verb, at least one pair, four options per expansion with the correct
// one among them, and exactly ten sentences.
func ValidateVNEST(verb string, c *domain.VNESTContent) error {
	if strings.TrimSpace(verb) == "" {
		return malformed("vnest", "missing verb")
	}
	if c == nil || len(c.Pairs) == 0 {
		return malformed("vnest", "missing pairs")
	}
	for i, p := range c.Pairs {
		if strings.TrimSpace(p.Subject) == "" || strings.TrimSpace(p.Object) == "" {
			return malformed("vnest", "pair %d lacks subject or object", i)
		}
		for _, e := range []struct {
			name string
			q    domain.Question
		}{
			{"where", p.Expansions.Where},
			{"when", p.Expansions.When},
			{"why", p.Expansions.Why},
		} {
			name, q := e.name, e.q
			if len(q.Options) != domain.OptionsPerQuestion {
				return malformed("vnest", "pair %d %s has %d options, want %d", i, name, len(q.Options), domain.OptionsPerQuestion)
			}
			if !slices.Contains(q.Options, q.Correct) {
				return malformed("vnest", "pair %d %s correct option is not among the options", i, name)
			}
		}
	}
	if len(c.Sentences) != domain.SentenceCount {
		return malformed("vnest", "got %d sentences, want %d", len(c.Sentences), domain.SentenceCount)
	}
	for i, s := range c.Sentences {
		if strings.TrimSpace(s.Text) == "" {
			return malformed("vnest", "sentence %d is empty", i)
		}
	}
	return nil
}

// ValidateSR requires at least one prompt and a question and answer on each.
func ValidateSR(items []SRItem) error {
	if len(items) == 0 {
		return malformed("sr", "no cards")
	}
	for i, it := range items {
		if strings.TrimSpace(it.Question) == "" || strings.TrimSpace(it.Answer) == "" {
			return malformed("sr", "card %d lacks question or answer", i)
		}
	}
	return nil
}

// NormalizeProfile trims every field, drops blank entries and maps unknown
// family relations to domain.RelationOther.
func NormalizeProfile(p *domain.StructuredProfile) {
	p.Personal = domain.PersonalInfo{
		Name:       strings.TrimSpace(p.Personal.Name),
		BirthDate:  strings.TrimSpace(p.Personal.BirthDate),
		BirthPlace: strings.TrimSpace(p.Personal.BirthPlace),
		City:       strings.TrimSpace(p.Personal.City),
	}

	family := []domain.Relative{}
	for _, r := range p.Family {
		r = domain.Relative{Name: strings.TrimSpace(r.Name), Relation: strings.TrimSpace(r.Relation), Description: strings.TrimSpace(r.Description)}
		if r.Name == "" && r.Description == "" {
			continue
		}
		if !slices.Contains(domain.FamilyRelations, r.Relation) {
			r.Relation = domain.RelationOther
		}
		family = append(family, r)
	}
	p.Family = family

	routines := []domain.Routine{}
	for _, r := range p.Routines {
		r = domain.Routine{Title: strings.TrimSpace(r.Title), Description: strings.TrimSpace(r.Description)}
		if r.Title == "" && r.Description == "" {
			continue
		}
		routines = append(routines, r)
	}
	p.Routines = routines

	objects := []domain.PersonalObject{}
	for _, o := range p.Objects {
		o = domain.PersonalObject{Name: strings.TrimSpace(o.Name), Relation: strings.TrimSpace(o.Relation), Description: strings.TrimSpace(o.Description)}
		if o.Name == "" && o.Description == "" {
			continue
		}
		objects = append(objects, o)
	}
	p.Objects = objects
}

// ValidateProfile requires at least one extracted fact, a name on every
// relative and object, and a title on every routine. Run NormalizeProfile first.
func ValidateProfile(p *domain.StructuredProfile) error {
	if p.Empty() {
		return malformed("profile", "nothing was extracted")
	}
	for i, r := range p.Family {
		if r.Name == "" {
			return malformed("profile", "family member %d has no name", i)
		}
	}
	for i, r := range p.Routines {
		if r.Title == "" {
			return malformed("profile", "routine %d has no title", i)
		}
	}
	for i, o := range p.Objects {
		if o.Name == "" {
			return malformed("profile", "object %d has no name", i)
		}
	}
	return nil
}
