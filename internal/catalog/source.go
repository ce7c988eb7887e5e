// Package catalog defines the abstractions the collaboration pipeline uses to
// talk to a scholarly catalog, plus the shared HTTP plumbing for catalog clients.
//
// The pipeline needs exactly two capabilities from a catalog: listing one page of
// works affiliated with an institution, and searching institutions by name.
// Each is a small interface so callers depend only on what they use.
//
// Example usage:
//
//	client := openalex.New(cfg)
//	page, err := client.FetchWorksPage(ctx, catalog.WorksQuery{
//		InstitutionID: "I136199984",
//		FromDate:      "2020-01-01",
//		Page:          1,
//		PerPage:       50,
//	})
package catalog

import (
	"context"

	"github.com/helixir/collab-graph-service/internal/domain"
)

// WorksQuery selects one page of works affiliated with an institution.
type WorksQuery struct {
	// InstitutionID is the catalog institution identifier.
	InstitutionID string

	// FromDate is the inclusive lower publication date bound, formatted YYYY-MM-DD.
	FromDate string

	// Page is the 1-based page number.
	Page int

	// PerPage is the page size.
	PerPage int
}

// WorksPage is one page of works in server order.
type WorksPage struct {
	Works []domain.Work

	// TotalCount is the server-reported number of matching works, if provided.
	TotalCount int
}

// InstitutionMatch is one candidate returned by an institution search.
type InstitutionMatch struct {
	ID          string
	DisplayName string
	CountryCode string
	Type        string
}

// WorkPager fetches single pages of institution works.
type WorkPager interface {
	// FetchWorksPage returns the requested page. An empty Works slice means
	// there are no further pages. Any non-success response is an error.
	FetchWorksPage(ctx context.Context, q WorksQuery) (*WorksPage, error)
}

// InstitutionSearcher searches catalog institutions by free-text name.
type InstitutionSearcher interface {
	// SearchInstitutions returns up to limit candidates in relevance order.
	SearchInstitutions(ctx context.Context, name string, limit int) ([]InstitutionMatch, error)
}
