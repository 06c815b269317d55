package search

import (
	"context"
	"net/url"
	"strconv"

	"grimoire/internal/entity"
)

// JSONGetter is the part of the API client HTTPCollection needs.
type JSONGetter interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
}

// HTTPCollection lists entities through the API's collection endpoints.
type HTTPCollection struct {
	client JSONGetter
	// Prefilter forwards the query text as ?search=. Off by default since
	// the server filters by substring, which hides typo matches.
	Prefilter bool
}

func NewHTTPCollection(client JSONGetter) *HTTPCollection {
	return &HTTPCollection{client: client}
}

type listResponse struct {
	Items []Item `json:"items"`
}

func (h *HTTPCollection) List(ctx context.Context, t entity.Type, f Filter) ([]Item, error) {
	q := url.Values{}
	if h.Prefilter && f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}

	var resp listResponse
	if err := h.client.GetJSON(ctx, "/api/"+t.Collection(), q, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Items {
		resp.Items[i].Type = t
	}
	return resp.Items, nil
}
