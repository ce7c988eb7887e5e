package domain

// Work is a publication record as far as the collaboration graph cares about it:
// an identifier and its ordered authorship entries.
type Work struct {
	// ID is the catalog work identifier. May be empty.
	ID string

	// Authorships is the ordered author list of the work.
	Authorships []Authorship
}

// Authorship is one author entry of a work. An author may list several
// institutions or none at all.
type Authorship struct {
	Institutions []InstitutionRef
}

// InstitutionRef is an institution affiliation as it appears on an authorship.
type InstitutionRef struct {
	ID          string
	DisplayName string
}

// InstitutionIDs returns the distinct non-empty institution IDs on the work,
// in order of first appearance. An ID seen in both URL and short form is
// returned once, in the form it first appeared.
func (w Work) InstitutionIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, a := range w.Authorships {
		for _, inst := range a.Institutions {
			key := NormalizeInstitutionID(inst.ID)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			ids = append(ids, inst.ID)
		}
	}
	return ids
}
