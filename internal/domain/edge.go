package domain

// Edge is a weighted undirected edge of the collaboration graph.
// CollabCount is the number of qualifying publication passes that produced the pair.
type Edge struct {
	InstitutionA string `json:"institution_a" yaml:"institution_a"`
	InstitutionB string `json:"institution_b" yaml:"institution_b"`
	CollabCount  int    `json:"collab_count" yaml:"collab_count"`
}

// Pair returns the canonical pair of the edge.
func (e Edge) Pair() CollaborationPair {
	return CollaborationPair{A: e.InstitutionA, B: e.InstitutionB}.Canonical()
}

// Touches reports whether the edge has id as one of its endpoints, in either
// URL or short form.
func (e Edge) Touches(id string) bool {
	return SameInstitutionID(e.InstitutionA, id) || SameInstitutionID(e.InstitutionB, id)
}

// FilterEdges returns the edges with at least minCount collaborations that touch
// institutionID. An empty institutionID matches every edge.
func FilterEdges(edges []Edge, minCount int, institutionID string) []Edge {
	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if e.CollabCount < minCount {
			continue
		}
		if institutionID != "" && !e.Touches(institutionID) {
			continue
		}
		out = append(out, e)
	}
	return out
}
