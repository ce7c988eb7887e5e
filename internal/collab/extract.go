package collab

import (
	"github.com/helixir/collab-graph-service/internal/domain"
)

// Extract returns the collaboration pairs of every work on which homeID
// appears. Each qualifying work yields one pair per other distinct institution
// on it; works without homeID yield nothing.
func Extract(works []domain.Work, homeID string) []domain.CollaborationPair {
	var pairs []domain.CollaborationPair
	for _, w := range works {
		pairs = append(pairs, ExtractWork(w, homeID)...)
	}
	return pairs
}

// ExtractWork returns the pairs for a single work, ordered by the first
// appearance of the partner institution in the authorship list.
func ExtractWork(work domain.Work, homeID string) []domain.CollaborationPair {
	if homeID == "" {
		return nil
	}

	ids := work.InstitutionIDs()
	home := ""
	for _, id := range ids {
		if domain.SameInstitutionID(id, homeID) {
			home = id
			break
		}
	}
	if home == "" {
		return nil
	}

	// Pairs carry IDs in the form the work lists them.
	pairs := make([]domain.CollaborationPair, 0, len(ids)-1)
	for _, other := range ids {
		if other == home {
			continue
		}
		// Both IDs are non-empty and distinct here, so NewPair cannot fail.
		pair, err := domain.NewPair(home, other)
		if err != nil {
			continue
		}
		pairs = append(pairs, pair)
	}
	return pairs
}
