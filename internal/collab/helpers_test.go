package collab

import (
	"context"
	"time"

	"github.com/helixir/collab-graph-service/internal/catalog"
	"github.com/helixir/collab-graph-service/internal/domain"
)

// work builds a work whose authorships list the given institution IDs.
// Each argument slice is one authorship entry.
func work(id string, authorships ...[]string) domain.Work {
	w := domain.Work{ID: id}
	for _, insts := range authorships {
		a := domain.Authorship{}
		for _, inst := range insts {
			a.Institutions = append(a.Institutions, domain.InstitutionRef{ID: inst})
		}
		w.Authorships = append(w.Authorships, a)
	}
	return w
}

// fakePager serves canned pages per institution and records every query.
type fakePager struct {
	pages map[string][][]domain.Work
	errs  map[string]map[int]error
	calls []catalog.WorksQuery
}

func (f *fakePager) FetchWorksPage(_ context.Context, q catalog.WorksQuery) (*catalog.WorksPage, error) {
	f.calls = append(f.calls, q)
	if err := f.errs[q.InstitutionID][q.Page]; err != nil {
		return nil, err
	}
	pages := f.pages[q.InstitutionID]
	if q.Page-1 < len(pages) {
		return &catalog.WorksPage{Works: pages[q.Page-1]}, nil
	}
	return &catalog.WorksPage{}, nil
}

func (f *fakePager) callsFor(institutionID string) []catalog.WorksQuery {
	var out []catalog.WorksQuery
	for _, c := range f.calls {
		if c.InstitutionID == institutionID {
			out = append(out, c)
		}
	}
	return out
}

// pauseRecorder is a Pauser that records requested delays without sleeping.
type pauseRecorder struct {
	delays []time.Duration
	err    error
}

func (p *pauseRecorder) pause(ctx context.Context, d time.Duration) error {
	p.delays = append(p.delays, d)
	if p.err != nil {
		return p.err
	}
	return ctx.Err()
}

// pages builds n pages with one work each.
func pages(n int, insts ...string) [][]domain.Work {
	out := make([][]domain.Work, n)
	for i := range out {
		out[i] = []domain.Work{work("", insts)}
	}
	return out
}
