// Package openalex provides a client for the OpenAlex API.
//
// OpenAlex is a free, open catalog of scholarly works, authors, venues and
// institutions. This package implements the catalog.WorkPager and
// catalog.InstitutionSearcher interfaces on top of the /works and
// /institutions endpoints.
//
// API Documentation: https://docs.openalex.org/
package openalex

// Meta contains metadata about a list response including pagination info.
type Meta struct {
	Count   int `json:"count"`
	DBTime  int `json:"db_response_time_ms"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// WorksResponse represents the top-level response from the /works list endpoint.
type WorksResponse struct {
	Meta    Meta   `json:"meta"`
	Results []Work `json:"results"`
}

// Work represents a scholarly work in OpenAlex. Only the fields the
// collaboration graph reads are decoded.
type Work struct {
	ID              string       `json:"id"`
	DOI             string       `json:"doi"`
	DisplayName     string       `json:"display_name"`
	PublicationYear int          `json:"publication_year"`
	Authorships     []Authorship `json:"authorships"`
}

// Authorship represents an author's contribution to a work.
type Authorship struct {
	AuthorPosition string        `json:"author_position"`
	Author         AuthorInfo    `json:"author"`
	Institutions   []Institution `json:"institutions"`
}

// AuthorInfo contains basic author information.
type AuthorInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Institution is a dehydrated institution as embedded in an authorship,
// and the shape of an /institutions search result.
type Institution struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	ROR         string `json:"ror"`
	CountryCode string `json:"country_code"`
	Type        string `json:"type"`
}

// InstitutionsResponse represents the top-level response from the /institutions search endpoint.
type InstitutionsResponse struct {
	Meta    Meta          `json:"meta"`
	Results []Institution `json:"results"`
}
