//nolint:testpackage // Testing internal repository requires same package access
package cohort

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
)

var sqliteCategories = []domain.Category{
	{ID: "active_milk_mob", Name: "Active Milk Mob", Keywords: []domain.Keyword{{Term: "sport", Weight: 1}}},
	{ID: "chef_milk_mob", Name: "Chef Milk Mob", Keywords: []domain.Keyword{{Term: "cooking", Weight: 1}}},
	{ID: "dance_milk_mob", Name: "Dance Milk Mob", Keywords: []domain.Keyword{{Term: "dance", Weight: 1}}},
}

func newSQLiteRepository(t *testing.T) *Repository {
	t.Helper()

	db, err := Open(Config{
		Driver: driverSQLite,
		DSN:    "file:" + filepath.Join(t.TempDir(), "cohort.db") + "?_foreign_keys=on&_busy_timeout=5000",
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := NewRepository(db)
	ctx := context.Background()
	if err = repo.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err = repo.SeedCategories(ctx, sqliteCategories); err != nil {
		t.Fatalf("SeedCategories() error = %v", err)
	}
	return repo
}

func memberCounts(t *testing.T, repo *Repository) map[string]int {
	t.Helper()

	stats, err := repo.Stats(context.Background(), 0)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	out := make(map[string]int, len(stats.CategoryCounts))
	for _, c := range stats.CategoryCounts {
		out[c.CategoryID] = c.MemberCount
	}
	return out
}

// rowCounts counts stored videos per category directly.
func rowCounts(t *testing.T, repo *Repository) map[string]int {
	t.Helper()

	var rows []struct {
		CategoryID string `db:"category_id"`
		Videos     int    `db:"videos"`
	}
	if err := repo.db.Select(&rows, `SELECT category_id, COUNT(*) AS videos FROM cohort_videos GROUP BY category_id`); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.CategoryID] = r.Videos
	}
	return out
}

func TestSQLite_RecordMembership_OnlyAssignedCategoryChanges(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()

	if err := repo.RecordMembership(ctx, &domain.Membership{VideoID: "vid-0", CategoryID: "dance_milk_mob"}); err != nil {
		t.Fatalf("RecordMembership() error = %v", err)
	}
	before := memberCounts(t, repo)

	if err := repo.RecordMembership(ctx, membership()); err != nil {
		t.Fatalf("RecordMembership() error = %v", err)
	}
	after := memberCounts(t, repo)

	for _, cat := range sqliteCategories {
		want := before[cat.ID]
		if cat.ID == "chef_milk_mob" {
			want++
		}
		if after[cat.ID] != want {
			t.Errorf("member_count[%s] = %d, want %d", cat.ID, after[cat.ID], want)
		}
	}
}

func TestSQLite_RecordMembership_MoveKeepsCountsEqualToRows(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()

	m := membership()
	if err := repo.RecordMembership(ctx, m); err != nil {
		t.Fatalf("RecordMembership() error = %v", err)
	}
	m.CategoryID = "active_milk_mob"
	if err := repo.RecordMembership(ctx, m); err != nil {
		t.Fatalf("RecordMembership() error = %v", err)
	}

	counts := memberCounts(t, repo)
	rows := rowCounts(t, repo)
	for _, cat := range sqliteCategories {
		if counts[cat.ID] != rows[cat.ID] {
			t.Errorf("member_count[%s] = %d, stored rows = %d", cat.ID, counts[cat.ID], rows[cat.ID])
		}
	}
	if counts["active_milk_mob"] != 1 || counts["chef_milk_mob"] != 0 {
		t.Errorf("unexpected counts after move: %v", counts)
	}
}

func TestSQLite_RecordMembership_ConcurrentMoves(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()

	const videos = 4
	const rounds = 6

	var wg sync.WaitGroup
	errs := make(chan error, videos*rounds)
	for v := range videos {
		for r := range rounds {
			wg.Add(1)
			go func(v, r int) {
				defer wg.Done()
				cat := sqliteCategories[(v+r)%len(sqliteCategories)].ID
				errs <- repo.RecordMembership(ctx, &domain.Membership{
					VideoID:    fmt.Sprintf("vid-%d", v),
					CategoryID: cat,
				})
			}(v, r)
		}
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("RecordMembership() error = %v", err)
		}
	}

	counts := memberCounts(t, repo)
	rows := rowCounts(t, repo)
	total := 0
	for _, cat := range sqliteCategories {
		total += counts[cat.ID]
		if counts[cat.ID] != rows[cat.ID] {
			t.Errorf("member_count[%s] = %d, stored rows = %d", cat.ID, counts[cat.ID], rows[cat.ID])
		}
	}
	if total != videos {
		t.Errorf("total members = %d, want %d", total, videos)
	}
}
