package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/catchlog/internal/apperror"
	"github.com/sakif/catchlog/internal/model"
	"github.com/sakif/catchlog/internal/repository"
)

// newTestSession opens a fresh in-memory database and pins a session on it.
// Both are released when the test ends, session first.
func newTestSession(t *testing.T) repository.Session {
	t.Helper()
	db, err := New(MemoryPath)
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	sess, err := db.Acquire(context.Background())
	if err != nil {
		db.Close()
		t.Fatalf("failed to acquire session: %v", err)
	}
	t.Cleanup(func() {
		sess.Close()
		db.Close()
	})
	return sess
}

func ptr[T any](v T) *T { return &v }

func day(d int) time.Time {
	return time.Date(2024, time.May, d, 6, 30, 0, 0, time.UTC)
}

func createTestCatch(t *testing.T, repo repository.CatchRepository, species string, ct model.CatchType, caught time.Time) *model.Catch {
	t.Helper()
	c := &model.Catch{
		Species:    species,
		CatchType:  ct,
		Location:   "Mountain River",
		DateCaught: caught,
		Equipment:  "Fly rod",
	}
	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatalf("failed to create test catch: %v", err)
	}
	return c
}

func TestCreate(t *testing.T) {
	sess := newTestSession(t)
	start := time.Now()

	c := &model.Catch{
		Species:    "Rainbow Trout",
		CatchType:  model.CatchTypeFishing,
		Weight:     ptr(2.4),
		Location:   "Mountain River",
		DateCaught: day(1),
		Equipment:  "Fly rod with size 12 fly",
		Notes:      ptr("early hatch"),
	}
	if err := sess.Create(context.Background(), c); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if c.ID == 0 {
		t.Error("Create() did not set ID")
	}
	if c.CreatedAt.Before(start.Truncate(time.Microsecond)) {
		t.Errorf("CreatedAt = %v, want at or after %v", c.CreatedAt, start)
	}
}

func TestCreate_UniqueIDs(t *testing.T) {
	sess := newTestSession(t)

	seen := map[int64]bool{}
	for i := 0; i < 5; i++ {
		c := createTestCatch(t, sess, "Perch", model.CatchTypeFishing, day(1))
		if seen[c.ID] {
			t.Fatalf("id %d issued twice", c.ID)
		}
		seen[c.ID] = true
	}
}

func TestCreate_IDsNotReusedAfterDelete(t *testing.T) {
	sess := newTestSession(t)
	ctx := context.Background()

	first := createTestCatch(t, sess, "Pike", model.CatchTypeFishing, day(1))
	if err := sess.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	second := createTestCatch(t, sess, "Pike", model.CatchTypeFishing, day(1))

	if second.ID <= first.ID {
		t.Errorf("new id %d reuses or precedes deleted id %d", second.ID, first.ID)
	}
}

func TestCreate_RejectsUnknownCatchType(t *testing.T) {
	sess := newTestSession(t)

	c := &model.Catch{
		Species:    "Rabbit",
		CatchType:  model.CatchType("trapping"),
		Location:   "Field",
		DateCaught: day(1),
		Equipment:  "Snare",
	}
	if err := sess.Create(context.Background(), c); err == nil {
		t.Fatal("Create() should reject a catch_type outside the CHECK constraint")
	}
}

func TestGetByID_RoundTrip(t *testing.T) {
	sess := newTestSession(t)
	ctx := context.Background()

	original := &model.Catch{
		Species:    "White-tailed Deer",
		CatchType:  model.CatchTypeHunting,
		Weight:     ptr(142.75),
		Location:   "North Ridge",
		DateCaught: time.Date(2023, 11, 12, 7, 5, 9, 123456789, time.UTC),
		Equipment:  "Compound bow",
		Notes:      ptr("eight point"),
	}
	if err := sess.Create(ctx, original); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	found, err := sess.GetByID(ctx, original.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if found.Species != original.Species {
		t.Errorf("Species = %q, want %q", found.Species, original.Species)
	}
	if found.CatchType != original.CatchType {
		t.Errorf("CatchType = %q, want %q", found.CatchType, original.CatchType)
	}
	if found.Weight == nil || *found.Weight != 142.75 {
		t.Errorf("Weight = %v, want 142.75", found.Weight)
	}
	if found.Location != original.Location {
		t.Errorf("Location = %q, want %q", found.Location, original.Location)
	}
	if !found.DateCaught.Equal(original.DateCaught) {
		t.Errorf("DateCaught = %v, want %v", found.DateCaught, original.DateCaught)
	}
	if found.Equipment != original.Equipment {
		t.Errorf("Equipment = %q, want %q", found.Equipment, original.Equipment)
	}
	if found.Notes == nil || *found.Notes != "eight point" {
		t.Errorf("Notes = %v, want %q", found.Notes, "eight point")
	}
	if !found.CreatedAt.Equal(original.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", found.CreatedAt, original.CreatedAt)
	}
}

func TestGetByID_NullOptionalFields(t *testing.T) {
	sess := newTestSession(t)
	created := createTestCatch(t, sess, "Bluegill", model.CatchTypeFishing, day(2))

	found, err := sess.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Weight != nil {
		t.Errorf("Weight = %v, want nil", *found.Weight)
	}
	if found.Notes != nil {
		t.Errorf("Notes = %q, want nil", *found.Notes)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	sess := newTestSession(t)

	_, err := sess.GetByID(context.Background(), 999)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestList_Empty(t *testing.T) {
	sess := newTestSession(t)

	catches, err := sess.List(context.Background(), repository.ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if catches == nil {
		t.Error("List() returned nil, want empty slice")
	}
	if len(catches) != 0 {
		t.Errorf("List() returned %d catches, want 0", len(catches))
	}
}

func TestList_OrderedByDateCaughtDesc(t *testing.T) {
	sess := newTestSession(t)

	createTestCatch(t, sess, "middle", model.CatchTypeFishing, day(10))
	createTestCatch(t, sess, "oldest", model.CatchTypeHunting, day(1))
	createTestCatch(t, sess, "newest", model.CatchTypeFishing, day(20))

	catches, err := sess.List(context.Background(), repository.ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	want := []string{"newest", "middle", "oldest"}
	if len(catches) != len(want) {
		t.Fatalf("List() returned %d catches, want %d", len(catches), len(want))
	}
	for i, w := range want {
		if catches[i].Species != w {
			t.Errorf("catches[%d].Species = %q, want %q", i, catches[i].Species, w)
		}
	}
}

func TestList_OrderAcrossTimeZones(t *testing.T) {
	sess := newTestSession(t)

	// 09:00 in UTC+5 is earlier than 06:00 UTC on the same day.
	plus5 := time.FixedZone("UTC+5", 5*60*60)
	createTestCatch(t, sess, "later", model.CatchTypeFishing, time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC))
	createTestCatch(t, sess, "earlier", model.CatchTypeFishing, time.Date(2024, 5, 1, 9, 0, 0, 0, plus5))

	catches, err := sess.List(context.Background(), repository.ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if catches[0].Species != "later" {
		t.Errorf("first catch = %q, want %q", catches[0].Species, "later")
	}
}

func TestList_FilterByType(t *testing.T) {
	sess := newTestSession(t)

	createTestCatch(t, sess, "Trout", model.CatchTypeFishing, day(3))
	createTestCatch(t, sess, "Deer", model.CatchTypeHunting, day(5))
	createTestCatch(t, sess, "Elk", model.CatchTypeHunting, day(4))

	hunting := model.CatchTypeHunting
	catches, err := sess.List(context.Background(), repository.ListOptions{CatchType: &hunting})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if len(catches) != 2 {
		t.Fatalf("List(hunting) returned %d catches, want 2", len(catches))
	}
	for _, c := range catches {
		if c.CatchType != model.CatchTypeHunting {
			t.Errorf("List(hunting) returned a %q catch", c.CatchType)
		}
	}
	if catches[0].Species != "Deer" {
		t.Errorf("first hunting catch = %q, want Deer", catches[0].Species)
	}
}

func TestUpdate(t *testing.T) {
	sess := newTestSession(t)
	ctx := context.Background()
	original := createTestCatch(t, sess, "Trout", model.CatchTypeFishing, day(1))

	original.Species = "Brown Trout"
	original.Weight = ptr(1.8)
	original.DateCaught = day(2)
	if err := sess.Update(ctx, original); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	found, err := sess.GetByID(ctx, original.ID)
	if err != nil {
		t.Fatalf("GetByID() after update error = %v", err)
	}
	if found.Species != "Brown Trout" {
		t.Errorf("Species = %q, want %q", found.Species, "Brown Trout")
	}
	if found.Weight == nil || *found.Weight != 1.8 {
		t.Errorf("Weight = %v, want 1.8", found.Weight)
	}
	if !found.DateCaught.Equal(day(2)) {
		t.Errorf("DateCaught = %v, want %v", found.DateCaught, day(2))
	}
	if !found.CreatedAt.Equal(original.CreatedAt) {
		t.Errorf("CreatedAt changed from %v to %v", original.CreatedAt, found.CreatedAt)
	}
}

func TestUpdate_DoesNotChangeCatchType(t *testing.T) {
	sess := newTestSession(t)
	ctx := context.Background()
	original := createTestCatch(t, sess, "Trout", model.CatchTypeFishing, day(1))

	original.CatchType = model.CatchTypeHunting
	if err := sess.Update(ctx, original); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	found, err := sess.GetByID(ctx, original.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.CatchType != model.CatchTypeFishing {
		t.Errorf("CatchType = %q, want fishing", found.CatchType)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	sess := newTestSession(t)

	c := &model.Catch{ID: 404, Species: "x", CatchType: model.CatchTypeFishing, Location: "x", Equipment: "x", DateCaught: day(1)}
	err := sess.Update(context.Background(), c)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	sess := newTestSession(t)
	ctx := context.Background()
	c := createTestCatch(t, sess, "Duck", model.CatchTypeHunting, day(1))

	if err := sess.Delete(ctx, c.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, err := sess.GetByID(ctx, c.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() after delete: error = %v, want ErrNotFound", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	sess := newTestSession(t)

	err := sess.Delete(context.Background(), 12345)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestStats(t *testing.T) {
	sess := newTestSession(t)
	ctx := context.Background()

	stats, err := sess.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() on empty table error = %v", err)
	}
	if *stats != (model.Stats{}) {
		t.Errorf("Stats() on empty table = %+v, want zeros", *stats)
	}

	fish := createTestCatch(t, sess, "Salmon", model.CatchTypeFishing, day(1))
	createTestCatch(t, sess, "Boar", model.CatchTypeHunting, day(2))

	stats, err = sess.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if want := (model.Stats{Total: 2, Hunting: 1, Fishing: 1}); *stats != want {
		t.Errorf("Stats() = %+v, want %+v", *stats, want)
	}

	if err := sess.Delete(ctx, fish.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	stats, err = sess.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if want := (model.Stats{Total: 1, Hunting: 1, Fishing: 0}); *stats != want {
		t.Errorf("Stats() after delete = %+v, want %+v", *stats, want)
	}
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	sess := newTestSession(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := sess.WithinTx(ctx, func(repo repository.CatchRepository) error {
		createTestCatch(t, repo, "Ghost", model.CatchTypeFishing, day(1))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTx() error = %v, want boom", err)
	}

	stats, err := sess.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("Total = %d after rollback, want 0", stats.Total)
	}
}

func TestWithinTx_Commits(t *testing.T) {
	sess := newTestSession(t)
	ctx := context.Background()

	var id int64
	err := sess.WithinTx(ctx, func(repo repository.CatchRepository) error {
		id = createTestCatch(t, repo, "Carp", model.CatchTypeFishing, day(1)).ID
		return nil
	})
	if err != nil {
		t.Fatalf("WithinTx() error = %v", err)
	}

	if _, err := sess.GetByID(ctx, id); err != nil {
		t.Errorf("GetByID() after commit error = %v", err)
	}
}

func TestFileDatabase_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catches.db")
	ctx := context.Background()

	db, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sess, err := db.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	created := createTestCatch(t, sess, "Walleye", model.CatchTypeFishing, day(7))
	sess.Close()
	db.Close()

	db, err = New(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer db.Close()

	sess, err = db.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer sess.Close()

	found, err := sess.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID() after reopen error = %v", err)
	}
	if found.Species != "Walleye" {
		t.Errorf("Species = %q, want Walleye", found.Species)
	}
}

func TestPingContext(t *testing.T) {
	db, err := New(MemoryPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	if err := db.PingContext(context.Background()); err != nil {
		t.Errorf("PingContext() error = %v", err)
	}
}

func TestDataSourceName(t *testing.T) {
	if got := dataSourceName(MemoryPath); got != MemoryPath {
		t.Errorf("dataSourceName(%q) = %q, want it unchanged", MemoryPath, got)
	}

	dsn := dataSourceName("data/catches.db")
	for _, want := range []string{"file:data/catches.db?", "_txlock=immediate", "busy_timeout(5000)", "journal_mode(WAL)"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("dataSourceName() = %q, missing %q", dsn, want)
		}
	}
}

// Read-then-write transactions from several sessions at once must all commit.
// With deferred transactions the lock upgrade fails with SQLITE_BUSY.
func TestWithinTx_ConcurrentUpdates(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "catches.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	seed, err := db.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	created := createTestCatch(t, seed, "Muskellunge", model.CatchTypeFishing, day(3))
	seed.Close()

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := db.Acquire(ctx)
			if err != nil {
				errs <- err
				return
			}
			defer sess.Close()

			errs <- sess.WithinTx(ctx, func(repo repository.CatchRepository) error {
				c, err := repo.GetByID(ctx, created.ID)
				if err != nil {
					return err
				}
				time.Sleep(5 * time.Millisecond)
				c.Equipment = fmt.Sprintf("rod %d", i)
				return repo.Update(ctx, c)
			})
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent update error = %v", err)
		}
	}
}
