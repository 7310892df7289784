package entity

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/onnwee/kindred/internal/geo"
	"github.com/onnwee/kindred/internal/tracing"
)

// PostgresRepository implements Repository backed by PostgreSQL.
// Interests, traits, and blocks are hydrated with follow-up queries per
// entity; the engine fetches entities individually from a bounded pool, so
// per-entity hydration keeps queries simple and parameterized.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new Postgres-backed entity repository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

// GetPerson retrieves a person by ID with interests, traits, and blocks.
func (r *PostgresRepository) GetPerson(ctx context.Context, id string) (*Person, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "people", tracing.DBOperationQuery)
	var err error
	defer func() { endSpan(err) }()

	p := &Person{ID: id}
	var lat, lng sql.NullFloat64
	var sizeMin, sizeMax sql.NullInt64

	err = r.db.QueryRowContext(ctx, `
		SELECT name, lat, lng, group_size_min, group_size_max
		FROM people WHERE id = $1`, id).
		Scan(&p.Name, &lat, &lng, &sizeMin, &sizeMax)
	if err == sql.ErrNoRows {
		err = ErrNotFound
		return nil, err
	}
	if err != nil {
		err = fmt.Errorf("query person %s: %w", id, err)
		return nil, err
	}

	if lat.Valid && lng.Valid {
		p.Location = &geo.Coordinate{Lat: lat.Float64, Lng: lng.Float64}
	}
	if sizeMin.Valid && sizeMax.Valid {
		p.GroupSizePref = &SizeRange{Min: int(sizeMin.Int64), Max: int(sizeMax.Int64)}
	}

	if err = r.hydratePerson(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// hydratePerson loads interests, traits, preferred types, and blocks.
func (r *PostgresRepository) hydratePerson(ctx context.Context, p *Person) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.id, i.name, i.category
		FROM person_interests pi
		JOIN interests i ON i.id = pi.interest_id
		WHERE pi.person_id = $1`, p.ID)
	if err != nil {
		return fmt.Errorf("query interests for %s: %w", p.ID, err)
	}
	defer closeRows(rows, r.logger)

	p.Interests = make(map[string]Interest)
	for rows.Next() {
		var in Interest
		var category sql.NullString
		if err := rows.Scan(&in.ID, &in.Name, &category); err != nil {
			return fmt.Errorf("scan interest: %w", err)
		}
		in.Category = category.String
		p.Interests[in.ID] = in
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate interests: %w", err)
	}

	traitRows, err := r.db.QueryContext(ctx, `
		SELECT trait, value FROM person_traits WHERE person_id = $1`, p.ID)
	if err != nil {
		return fmt.Errorf("query traits for %s: %w", p.ID, err)
	}
	defer closeRows(traitRows, r.logger)

	p.Traits = make(map[string]float64)
	for traitRows.Next() {
		var trait string
		var value float64
		if err := traitRows.Scan(&trait, &value); err != nil {
			return fmt.Errorf("scan trait: %w", err)
		}
		p.Traits[trait] = value
	}
	if err := traitRows.Err(); err != nil {
		return fmt.Errorf("iterate traits: %w", err)
	}

	typeRows, err := r.db.QueryContext(ctx, `
		SELECT group_type FROM person_preferred_types WHERE person_id = $1`, p.ID)
	if err != nil {
		return fmt.Errorf("query preferred types for %s: %w", p.ID, err)
	}
	defer closeRows(typeRows, r.logger)

	for typeRows.Next() {
		var gt string
		if err := typeRows.Scan(&gt); err != nil {
			return fmt.Errorf("scan preferred type: %w", err)
		}
		p.PreferredTypes = append(p.PreferredTypes, gt)
	}
	if err := typeRows.Err(); err != nil {
		return fmt.Errorf("iterate preferred types: %w", err)
	}

	blockRows, err := r.db.QueryContext(ctx, `
		SELECT blocked_id FROM person_blocks WHERE person_id = $1`, p.ID)
	if err != nil {
		return fmt.Errorf("query blocks for %s: %w", p.ID, err)
	}
	defer closeRows(blockRows, r.logger)

	p.Blocked = make(map[string]struct{})
	for blockRows.Next() {
		var blocked string
		if err := blockRows.Scan(&blocked); err != nil {
			return fmt.Errorf("scan block: %w", err)
		}
		p.Blocked[blocked] = struct{}{}
	}
	if err := blockRows.Err(); err != nil {
		return fmt.Errorf("iterate blocks: %w", err)
	}

	return nil
}

// GetGroup retrieves a group by ID with tags.
func (r *PostgresRepository) GetGroup(ctx context.Context, id string) (*Group, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "groups", tracing.DBOperationQuery)
	var err error
	defer func() { endSpan(err) }()

	g := &Group{ID: id}
	var lat, lng sql.NullFloat64
	var groupType sql.NullString

	err = r.db.QueryRowContext(ctx, `
		SELECT name, lat, lng, group_type, member_count
		FROM groups WHERE id = $1`, id).
		Scan(&g.Name, &lat, &lng, &groupType, &g.MemberCount)
	if err == sql.ErrNoRows {
		err = ErrNotFound
		return nil, err
	}
	if err != nil {
		err = fmt.Errorf("query group %s: %w", id, err)
		return nil, err
	}

	if lat.Valid && lng.Valid {
		g.Location = &geo.Coordinate{Lat: lat.Float64, Lng: lng.Float64}
	}
	g.Type = groupType.String

	rows, err := r.db.QueryContext(ctx, `
		SELECT i.id, i.name, i.category
		FROM group_tags gt
		JOIN interests i ON i.id = gt.interest_id
		WHERE gt.group_id = $1`, id)
	if err != nil {
		err = fmt.Errorf("query tags for %s: %w", id, err)
		return nil, err
	}
	defer closeRows(rows, r.logger)

	g.Tags = make(map[string]Interest)
	for rows.Next() {
		var in Interest
		var category sql.NullString
		if err = rows.Scan(&in.ID, &in.Name, &category); err != nil {
			err = fmt.Errorf("scan tag: %w", err)
			return nil, err
		}
		in.Category = category.String
		g.Tags[in.ID] = in
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterate tags: %w", err)
		return nil, err
	}

	return g, nil
}

// ListPeople returns all people with coordinates hydrated but without
// interest/trait/block hydration; the scan proximity index only needs
// IDs and locations, and callers re-fetch full entities before scoring.
func (r *PostgresRepository) ListPeople(ctx context.Context) ([]*Person, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "people", tracing.DBOperationQuery)
	var err error
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT id, name, lat, lng FROM people`)
	if err != nil {
		err = fmt.Errorf("list people: %w", err)
		return nil, err
	}
	defer closeRows(rows, r.logger)

	var out []*Person
	for rows.Next() {
		p := &Person{}
		var lat, lng sql.NullFloat64
		if err = rows.Scan(&p.ID, &p.Name, &lat, &lng); err != nil {
			err = fmt.Errorf("scan person: %w", err)
			return nil, err
		}
		if lat.Valid && lng.Valid {
			p.Location = &geo.Coordinate{Lat: lat.Float64, Lng: lng.Float64}
		}
		out = append(out, p)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterate people: %w", err)
		return nil, err
	}
	return out, nil
}

// ListGroups returns all groups with coordinates and size/type attributes.
func (r *PostgresRepository) ListGroups(ctx context.Context) ([]*Group, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "groups", tracing.DBOperationQuery)
	var err error
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, lat, lng, group_type, member_count FROM groups`)
	if err != nil {
		err = fmt.Errorf("list groups: %w", err)
		return nil, err
	}
	defer closeRows(rows, r.logger)

	var out []*Group
	for rows.Next() {
		g := &Group{}
		var lat, lng sql.NullFloat64
		var groupType sql.NullString
		if err = rows.Scan(&g.ID, &g.Name, &lat, &lng, &groupType, &g.MemberCount); err != nil {
			err = fmt.Errorf("scan group: %w", err)
			return nil, err
		}
		if lat.Valid && lng.Valid {
			g.Location = &geo.Coordinate{Lat: lat.Float64, Lng: lng.Float64}
		}
		g.Type = groupType.String
		out = append(out, g)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterate groups: %w", err)
		return nil, err
	}

	// Attach tags in one pass so tag filters can run against list results.
	byID := make(map[string]*Group, len(out))
	for _, g := range out {
		g.Tags = make(map[string]Interest)
		byID[g.ID] = g
	}
	tagRows, err := r.db.QueryContext(ctx, `
		SELECT gt.group_id, i.id, i.name, i.category
		FROM group_tags gt
		JOIN interests i ON i.id = gt.interest_id`)
	if err != nil {
		err = fmt.Errorf("list group tags: %w", err)
		return nil, err
	}
	defer closeRows(tagRows, r.logger)

	for tagRows.Next() {
		var groupID string
		var in Interest
		var category sql.NullString
		if err = tagRows.Scan(&groupID, &in.ID, &in.Name, &category); err != nil {
			err = fmt.Errorf("scan group tag: %w", err)
			return nil, err
		}
		in.Category = category.String
		if g, ok := byID[groupID]; ok {
			g.Tags[in.ID] = in
		}
	}
	if err = tagRows.Err(); err != nil {
		err = fmt.Errorf("iterate group tags: %w", err)
		return nil, err
	}

	return out, nil
}

// closeRows closes a result set, logging close failures instead of masking
// the primary error path.
func closeRows(rows *sql.Rows, logger *slog.Logger) {
	if err := rows.Close(); err != nil {
		logger.Warn("failed to close rows", "error", err)
	}
}
