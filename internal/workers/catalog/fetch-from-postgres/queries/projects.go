package queries

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"leadflow/internal/models"
)

const projectColumns = `id, name, location, min_price, max_price, min_bedrooms, max_bedrooms, property_type`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// BuildProjectsQuery renders the range query for q. Text filters are
// case-insensitive substrings; price and bedroom ranges only apply when the
// lead has a budget or a bedroom count. A zero Limit returns every match.
func BuildProjectsQuery(q models.CatalogQuery) (string, []interface{}) {
	args := []interface{}{
		"%" + likeEscaper.Replace(strings.TrimSpace(q.Location)) + "%",
		"%" + likeEscaper.Replace(strings.TrimSpace(q.PropertyType)) + "%",
	}
	where := []string{"location ILIKE $1", "property_type ILIKE $2"}

	if q.Budget > 0 {
		low, high := q.PriceBounds()
		args = append(args, high, low)
		where = append(where,
			fmt.Sprintf("min_price <= $%d", len(args)-1),
			fmt.Sprintf("max_price >= $%d", len(args)),
		)
	}
	if q.Bedrooms > 0 {
		args = append(args, q.Bedrooms)
		where = append(where,
			fmt.Sprintf("min_bedrooms <= $%d", len(args)),
			fmt.Sprintf("max_bedrooms >= $%d", len(args)),
		)
	}

	query := fmt.Sprintf("SELECT %s FROM projects WHERE %s ORDER BY name",
		projectColumns, strings.Join(where, " AND "))
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args
}

func ProjectsByCriteria(ctx context.Context, db *sql.DB, params map[string]interface{}) (interface{}, int, int64, error) {
	q, ok := params["query"].(models.CatalogQuery)
	if !ok {
		return nil, 0, 0, ErrMissingParam
	}

	start := time.Now()

	query, args := BuildProjectsQuery(q)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, 0, err
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Location, &p.MinPrice, &p.MaxPrice,
			&p.MinBedrooms, &p.MaxBedrooms, &p.PropertyType); err != nil {
			return nil, 0, 0, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, err
	}

	return projects, len(projects), time.Since(start).Milliseconds(), nil
}

func ProjectCount(ctx context.Context, db *sql.DB, params map[string]interface{}) (interface{}, int, int64, error) {
	start := time.Now()

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&count); err != nil {
		return nil, 0, 0, err
	}
	return count, 1, time.Since(start).Milliseconds(), nil
}
