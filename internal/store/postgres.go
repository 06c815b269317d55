package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"grimoire/internal/entity"
)

const defaultListLimit = 200

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListEntities returns rows of one collection ordered by name.
func (s *PostgresStore) ListEntities(ctx context.Context, t entity.Type, filter ListFilter) ([]entity.Summary, error) {
	tbl, err := tableFor(t)
	if err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var where []string
	var args []any
	argN := 1
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argN))
		args = append(args, filter.Status)
		argN++
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		where = append(where, fmt.Sprintf("name ILIKE $%d", argN))
		args = append(args, "%"+escapeLike(search)+"%")
		argN++
	}
	for attr, value := range filter.Attributes {
		col, ok := tbl.column(attr)
		if !ok {
			return nil, fmt.Errorf("unknown filter %q for %s", attr, tbl.name)
		}
		where = append(where, fmt.Sprintf("%s = $%d", col.selectExpr(), argN))
		args = append(args, value)
		argN++
	}

	query := fmt.Sprintf("SELECT %s FROM %s", tbl.selectColumns(), tbl.name)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY name ASC, id ASC LIMIT %d", limit)
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", tbl.name, err)
	}
	defer rows.Close()

	items := make([]entity.Summary, 0)
	for rows.Next() {
		detail, err := scanDetail(rows, t, tbl)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", tbl.name, err)
		}
		items = append(items, detail.Summary())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", tbl.name, err)
	}
	return items, nil
}

// GetEntity loads one row; a missing row is reported as entity.ErrNotFound.
func (s *PostgresStore) GetEntity(ctx context.Context, t entity.Type, id string) (entity.Detail, error) {
	tbl, err := tableFor(t)
	if err != nil {
		return entity.Detail{}, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", tbl.selectColumns(), tbl.name)
	detail, err := scanDetail(s.db.QueryRowContext(ctx, query, id), t, tbl)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Detail{}, fmt.Errorf("%s %s: %w", t, id, entity.ErrNotFound)
	}
	if err != nil {
		return entity.Detail{}, fmt.Errorf("get %s %s: %w", t, id, err)
	}
	return detail, nil
}

// UpsertEntity inserts or replaces a row. Used for seeding; regular writes
// belong to the catalog service.
func (s *PostgresStore) UpsertEntity(ctx context.Context, detail entity.Detail) error {
	tbl, err := tableFor(detail.Type)
	if err != nil {
		return err
	}

	status := detail.Status
	if status == "" {
		status = entity.StatusActive
	}

	cols := []string{"id", "name", "description", "status"}
	args := []any{detail.ID, detail.Name, detail.Description, status}
	for _, c := range tbl.extra {
		cols = append(cols, c.name)
		value := detail.Attributes[c.attr]
		if c.integer {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				n = 1
			}
			args = append(args, n)
			continue
		}
		args = append(args, value)
	}

	placeholders := make([]string, len(cols))
	updates := make([]string, 0, len(cols))
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if c != "id" {
			updates = append(updates, fmt.Sprintf("%s=EXCLUDED.%s", c, c))
		}
	}
	updates = append(updates, "updated_at=NOW()")

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s`,
		tbl.name,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s %s: %w", tbl.name, detail.ID, err)
	}
	return nil
}

// CountEntities returns the number of rows across every collection.
func (s *PostgresStore) CountEntities(ctx context.Context) (int, error) {
	total := 0
	for _, t := range entity.All() {
		tbl, err := tableFor(t)
		if err != nil {
			return 0, err
		}
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM "+tbl.name).Scan(&n); err != nil {
			return 0, fmt.Errorf("count %s: %w", tbl.name, err)
		}
		total += n
	}
	return total, nil
}

// LoadAll returns every row of one collection for full reindexing.
func (s *PostgresStore) LoadAll(ctx context.Context, t entity.Type) ([]entity.Detail, error) {
	tbl, err := tableFor(t)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s ORDER BY id", tbl.selectColumns(), tbl.name))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", tbl.name, err)
	}
	defer rows.Close()

	items := make([]entity.Detail, 0)
	for rows.Next() {
		detail, err := scanDetail(rows, t, tbl)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", tbl.name, err)
		}
		items = append(items, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", tbl.name, err)
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDetail(row scanner, t entity.Type, tbl table) (entity.Detail, error) {
	var (
		detail    entity.Detail
		updatedAt time.Time
	)
	extras := make([]string, len(tbl.extra))
	dest := []any{&detail.ID, &detail.Name, &detail.Description, &detail.Status, &updatedAt}
	for i := range extras {
		dest = append(dest, &extras[i])
	}
	if err := row.Scan(dest...); err != nil {
		return entity.Detail{}, err
	}

	detail.Type = t
	detail.UpdatedAt = updatedAt
	detail.Attributes = make(map[string]string, len(extras))
	for i, c := range tbl.extra {
		if extras[i] != "" {
			detail.Attributes[c.attr] = extras[i]
		}
	}
	return detail, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
