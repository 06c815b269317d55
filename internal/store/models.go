package store

import (
	"fmt"

	"grimoire/internal/entity"
)

// ListFilter narrows a collection query.
type ListFilter struct {
	Search string
	Status string
	Limit  int
	Offset int
	// Attributes filters on type-specific columns, e.g. {"circle": "3"}.
	Attributes map[string]string
}

// table describes how one entity collection is laid out in Postgres.
type table struct {
	name string
	// extra maps attribute keys to type-specific columns.
	extra []column
}

type column struct {
	attr    string
	name    string
	integer bool
}

func (c column) selectExpr() string {
	if c.integer {
		return c.name + "::text"
	}
	return c.name
}

func tableFor(t entity.Type) (table, error) {
	switch t {
	case entity.Rule:
		return table{name: "rules", extra: []column{{attr: "category", name: "category"}}}, nil
	case entity.Ability:
		return table{name: "abilities", extra: []column{{attr: "attribute", name: "attribute"}}}, nil
	case entity.Feat:
		return table{name: "feats", extra: []column{{attr: "category", name: "category"}, {attr: "prerequisite", name: "prerequisite"}}}, nil
	case entity.Spell:
		return table{name: "spells", extra: []column{{attr: "circle", name: "circle", integer: true}, {attr: "school", name: "school"}}}, nil
	default:
		return table{}, fmt.Errorf("%w: %q", entity.ErrUnknownType, string(t))
	}
}

func (t table) selectColumns() string {
	cols := "id, name, description, status, updated_at"
	for _, c := range t.extra {
		cols += ", " + c.selectExpr()
	}
	return cols
}

func (t table) column(attr string) (column, bool) {
	for _, c := range t.extra {
		if c.attr == attr {
			return c, true
		}
	}
	return column{}, false
}
