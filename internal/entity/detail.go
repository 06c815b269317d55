package entity

import "time"

// Detail is the full record fetched when a reference is resolved.
type Detail struct {
	Type        Type              `json:"entityType"`
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Status      string            `json:"status"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Summary is a list row as returned by a collection query.
type Summary struct {
	Type        Type              `json:"entityType"`
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Status      string            `json:"status"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Active reports whether the entity is visible to suggestion and preview.
func (d Detail) Active() bool {
	return d.Status == "" || d.Status == StatusActive
}

// Summary drops fields that only the preview needs.
func (d Detail) Summary() Summary {
	return Summary{
		Type:        d.Type,
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Status:      d.Status,
		Attributes:  d.Attributes,
	}
}
