// Package search finds reference candidates across every entity collection.
package search

import (
	"context"

	"grimoire/internal/entity"
)

// Item is one row returned by a collection query.
type Item = entity.Summary

// Filter mirrors the collection list endpoint's query parameters.
type Filter struct {
	Search string
	Status string
	Limit  int
	Offset int
}

// Collection lists the entities of one type.
type Collection interface {
	List(ctx context.Context, t entity.Type, f Filter) ([]Item, error)
}

// Candidate is a search result normalized across entity types.
type Candidate struct {
	ID         string            `json:"id"`
	Label      string            `json:"label"`
	EntityType entity.Type       `json:"entityType"`
	Secondary  string            `json:"secondary,omitempty"`
	Hints      map[string]string `json:"hints,omitempty"`
	Score      int               `json:"score"`
}

// Record is what gets pushed into the search index for one entity.
type Record struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Status      string            `json:"status"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

func candidateFromItem(t entity.Type, item Item, secondary string) Candidate {
	var hints map[string]string
	for _, key := range t.HintKeys() {
		if v, ok := item.Attributes[key]; ok && v != "" {
			if hints == nil {
				hints = make(map[string]string)
			}
			hints[key] = v
		}
	}
	return Candidate{
		ID:         item.ID,
		Label:      item.Name,
		EntityType: t,
		Secondary:  secondary,
		Hints:      hints,
	}
}
