package cohort

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
)

// ErrUnknownCategory is returned when a membership references a category that is not stored.
var ErrUnknownCategory = errors.New("unknown category")

//go:embed schema.sql
var schema string

// Repository is the Cohort Store. Queries are written with ? placeholders and
// rebound for the connected driver.
type Repository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewRepository wraps db.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Ping verifies the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Migrate creates the cohort tables when absent.
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply cohort schema: %w", err)
		}
	}
	return nil
}

// SeedCategories upserts category rows in table order and inserts keywords
// that have no stored weight yet. Member counts are never touched.
func (r *Repository) SeedCategories(ctx context.Context, categories []domain.Category) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsertCategory := tx.Rebind(`
		INSERT INTO cohort_categories (category_id, name, description, position, member_count, updated_at)
		VALUES (?, ?, ?, ?, 0, ?)
		ON CONFLICT (category_id) DO UPDATE
		SET name = excluded.name, description = excluded.description, position = excluded.position`)
	insertKeyword := tx.Rebind(`
		INSERT INTO cohort_keywords (category_id, keyword, weight)
		VALUES (?, ?, ?)
		ON CONFLICT (category_id, keyword) DO NOTHING`)

	now := r.now()
	for pos, cat := range categories {
		if _, err = tx.ExecContext(ctx, upsertCategory, cat.ID, cat.Name, cat.Description, pos, now); err != nil {
			return fmt.Errorf("seed category %s: %w", cat.ID, err)
		}
		for _, kw := range cat.Keywords {
			weight := kw.Weight
			if weight <= 0 {
				weight = domain.DefaultKeywordWeight
			}
			if _, err = tx.ExecContext(ctx, insertKeyword, cat.ID, kw.Term, weight); err != nil {
				return fmt.Errorf("seed keyword %s/%s: %w", cat.ID, kw.Term, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

// RecordMembership stores m and adjusts member counters in one transaction.
// A video already stored under another category is moved, so each category's
// member_count always equals the number of videos referencing it. On
// PostgreSQL the existing row is locked, so concurrent moves of the same video
// serialize; SQLite serializes all writers through its single connection.
func (r *Repository) RecordMembership(ctx context.Context, m *domain.Membership) error {
	if m.ClassifiedAt.IsZero() {
		m.ClassifiedAt = r.now()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin membership: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var previous string
	err = tx.GetContext(ctx, &previous, tx.Rebind(r.lockingSelect(selectVideoCategory)), m.VideoID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = r.insertMembership(ctx, tx, m)
	case err != nil:
		err = fmt.Errorf("look up video %s: %w", m.VideoID, err)
	default:
		err = r.updateMembership(ctx, tx, m, previous)
	}
	if err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit membership: %w", err)
	}
	return nil
}

func (r *Repository) insertMembership(ctx context.Context, tx *sqlx.Tx, m *domain.Membership) error {
	if err := adjustCount(ctx, tx, m.CategoryID, 1, m.ClassifiedAt); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO cohort_videos (video_id, category_id, title, place_name, city, match_score, classified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		m.VideoID, m.CategoryID, m.Title, m.PlaceName, m.City, m.MatchScore, m.ClassifiedAt)
	if err != nil {
		return fmt.Errorf("insert video %s: %w", m.VideoID, err)
	}
	return nil
}

const selectVideoCategory = `SELECT category_id FROM cohort_videos WHERE video_id = ?`

// lockingSelect appends a row lock for drivers that support one.
func (r *Repository) lockingSelect(query string) string {
	if r.db.DriverName() == driverSQLite {
		return query
	}
	return query + " FOR UPDATE"
}

// updateMembership moves a video between categories. Counter rows are
// updated in category id order so opposite moves cannot deadlock.
func (r *Repository) updateMembership(ctx context.Context, tx *sqlx.Tx, m *domain.Membership, previous string) error {
	if previous != m.CategoryID {
		adjustments := []struct {
			id    string
			delta int
		}{{previous, -1}, {m.CategoryID, 1}}
		if m.CategoryID < previous {
			adjustments[0], adjustments[1] = adjustments[1], adjustments[0]
		}
		for _, a := range adjustments {
			if err := adjustCount(ctx, tx, a.id, a.delta, m.ClassifiedAt); err != nil {
				return err
			}
		}
	}
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE cohort_videos
		SET category_id = ?, title = ?, place_name = ?, city = ?, match_score = ?, classified_at = ?
		WHERE video_id = ?`),
		m.CategoryID, m.Title, m.PlaceName, m.City, m.MatchScore, m.ClassifiedAt, m.VideoID)
	if err != nil {
		return fmt.Errorf("update video %s: %w", m.VideoID, err)
	}
	return nil
}

func adjustCount(ctx context.Context, tx *sqlx.Tx, categoryID string, delta int, at time.Time) error {
	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE cohort_categories SET member_count = member_count + ?, updated_at = ?
		WHERE category_id = ?`), delta, at, categoryID)
	if err != nil {
		return fmt.Errorf("update member count for %s: %w", categoryID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update member count for %s: %w", categoryID, err)
	}
	if n != 1 {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, categoryID)
	}
	return nil
}

// NearbyCategories groups stored videos filmed at exactly placeName by
// category, largest first, returning at most limit entries.
func (r *Repository) NearbyCategories(ctx context.Context, placeName string, limit int) ([]domain.NearbyCategory, error) {
	var out []domain.NearbyCategory
	query := r.db.Rebind(`
		SELECT v.category_id, c.name, COUNT(*) AS member_count
		FROM cohort_videos v
		JOIN cohort_categories c ON c.category_id = v.category_id
		WHERE v.place_name = ?
		GROUP BY v.category_id, c.name, c.position
		ORDER BY member_count DESC, c.position ASC
		LIMIT ?`)
	if err := r.db.SelectContext(ctx, &out, query, placeName, limit); err != nil {
		return nil, fmt.Errorf("query nearby categories: %w", err)
	}
	return out, nil
}

// Stats aggregates member counts, location distribution, the topN highest
// scoring videos and totals.
func (r *Repository) Stats(ctx context.Context, topN int) (*domain.CohortStats, error) {
	stats := &domain.CohortStats{
		CategoryCounts:       []domain.CategoryCount{},
		LocationDistribution: []domain.LocationCount{},
		TopVideos:            []domain.Membership{},
	}

	if err := r.db.SelectContext(ctx, &stats.CategoryCounts, `
		SELECT category_id, name, member_count
		FROM cohort_categories
		ORDER BY position ASC, category_id ASC`); err != nil {
		return nil, fmt.Errorf("query category counts: %w", err)
	}

	if err := r.db.SelectContext(ctx, &stats.LocationDistribution, `
		SELECT place_name, COUNT(*) AS video_count
		FROM cohort_videos
		WHERE place_name <> ''
		GROUP BY place_name
		ORDER BY video_count DESC, place_name ASC`); err != nil {
		return nil, fmt.Errorf("query location distribution: %w", err)
	}

	if err := r.db.SelectContext(ctx, &stats.TopVideos, r.db.Rebind(`
		SELECT video_id, category_id, title, place_name, city, match_score, classified_at
		FROM cohort_videos
		ORDER BY match_score DESC, classified_at ASC
		LIMIT ?`), topN); err != nil {
		return nil, fmt.Errorf("query top videos: %w", err)
	}

	if err := r.db.GetContext(ctx, &stats.Totals, `
		SELECT
			(SELECT COUNT(*) FROM cohort_videos) AS videos,
			(SELECT COUNT(*) FROM cohort_categories) AS categories,
			(SELECT COUNT(*) FROM cohort_categories WHERE member_count > 0) AS active_categories`); err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}

	return stats, nil
}

// KeywordWeights returns stored weights keyed by category id, then keyword.
func (r *Repository) KeywordWeights(ctx context.Context) (map[string]map[string]float64, error) {
	var rows []struct {
		CategoryID string  `db:"category_id"`
		Keyword    string  `db:"keyword"`
		Weight     float64 `db:"weight"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT category_id, keyword, weight FROM cohort_keywords`); err != nil {
		return nil, fmt.Errorf("query keyword weights: %w", err)
	}

	out := make(map[string]map[string]float64)
	for _, row := range rows {
		if out[row.CategoryID] == nil {
			out[row.CategoryID] = make(map[string]float64)
		}
		out[row.CategoryID][row.Keyword] = row.Weight
	}
	return out, nil
}

// SetKeywordWeight stores weight for one category keyword, inserting it when new.
func (r *Repository) SetKeywordWeight(ctx context.Context, categoryID, keyword string, weight float64) error {
	return r.SetKeywordWeights(ctx, categoryID, []domain.Keyword{{Term: keyword, Weight: weight}})
}

// SetKeywordWeights stores every keyword weight for a category in one
// transaction: either all are saved or none are.
func (r *Repository) SetKeywordWeights(ctx context.Context, categoryID string, keywords []domain.Keyword) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin keyword update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.GetContext(ctx, &exists,
		tx.Rebind(`SELECT COUNT(*) FROM cohort_categories WHERE category_id = ?`), categoryID)
	if err != nil {
		return fmt.Errorf("look up category %s: %w", categoryID, err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, categoryID)
	}

	upsert := tx.Rebind(`
		INSERT INTO cohort_keywords (category_id, keyword, weight)
		VALUES (?, ?, ?)
		ON CONFLICT (category_id, keyword) DO UPDATE SET weight = excluded.weight`)
	for _, kw := range keywords {
		if _, err = tx.ExecContext(ctx, upsert, categoryID, kw.Term, kw.Weight); err != nil {
			return fmt.Errorf("set keyword weight %s/%s: %w", categoryID, kw.Term, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit keyword update: %w", err)
	}
	return nil
}
