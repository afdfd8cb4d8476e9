package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/PetoAdam/homenavi/arm-bridge/internal/prm"
)

func openTestRepo(t *testing.T) *Repo {
	t.Helper()
	// Unique in-memory DB per test to avoid cross-test contamination.
	dsn := "file:store_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	repo, err := New(db)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo
}

func insert(t *testing.T, repo *Repo, arm string, ts time.Time, pos float64) *JointStateSnapshot {
	t.Helper()
	s := prm.StateJoint{Position: []float64{pos}, Timestamp: ts, Valid: true}
	p, err := SnapshotFromState(arm, "GetStateJointDesired", s)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if err := repo.InsertSnapshot(context.Background(), p); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return p
}

func TestSnapshotFromState(t *testing.T) {
	s := prm.StateJoint{Name: []string{"j1"}, Position: []float64{0.5}, Timestamp: time.Unix(10, 0), Valid: true}
	p, err := SnapshotFromState("PSM1", "GetStateJointDesired", s)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	var pos []float64
	if err := json.Unmarshal(p.Position, &pos); err != nil || len(pos) != 1 || pos[0] != 0.5 {
		t.Fatalf("unexpected position %s", p.Position)
	}
	if string(p.Velocity) != "[]" || string(p.Names) != `["j1"]` {
		t.Fatalf("unexpected encoding velocity=%s names=%s", p.Velocity, p.Names)
	}
	if p.TS.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp")
	}
}

func TestListSnapshotsCursorAsc(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	insert(t, repo, "PSM1", base.Add(1*time.Second), 1)
	insert(t, repo, "PSM1", base.Add(2*time.Second), 2)
	insert(t, repo, "PSM1", base.Add(3*time.Second), 3)
	insert(t, repo, "PSM2", base.Add(1*time.Second), 9)

	page1, err := repo.ListSnapshots(ctx, "PSM1", 2, nil, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page1.Snapshots) != 2 || page1.NextCursor == "" {
		t.Fatalf("expected 2 snapshots and a cursor, got %d %q", len(page1.Snapshots), page1.NextCursor)
	}
	cur, err := DecodeCursor(page1.NextCursor)
	if err != nil {
		t.Fatalf("decode cursor: %v", err)
	}
	page2, err := repo.ListSnapshots(ctx, "PSM1", 2, cur, false)
	if err != nil {
		t.Fatalf("list page2: %v", err)
	}
	if len(page2.Snapshots) != 1 || page2.NextCursor != "" {
		t.Fatalf("expected final page of 1, got %d %q", len(page2.Snapshots), page2.NextCursor)
	}
	if !page2.Snapshots[0].TS.Equal(base.Add(3 * time.Second)) {
		t.Fatalf("unexpected last snapshot %v", page2.Snapshots[0].TS)
	}
}

func TestListSnapshotsDesc(t *testing.T) {
	repo := openTestRepo(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		insert(t, repo, "ECM", base.Add(time.Duration(i)*time.Second), float64(i))
	}
	page, err := repo.ListSnapshots(context.Background(), "ECM", 10, nil, true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Snapshots) != 3 || !page.Snapshots[0].TS.Equal(base.Add(2*time.Second)) {
		t.Fatalf("expected newest first, got %+v", page.Snapshots)
	}
}

func TestPruneBefore(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	insert(t, repo, "PSM1", base, 1)
	insert(t, repo, "PSM1", base.Add(time.Hour), 2)

	n, err := repo.PruneBefore(ctx, base.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned row, got %d", n)
	}
	page, _ := repo.ListSnapshots(ctx, "PSM1", 10, nil, false)
	if len(page.Snapshots) != 1 {
		t.Fatalf("expected 1 remaining, got %d", len(page.Snapshots))
	}
}

func TestDecodeCursor(t *testing.T) {
	c, err := DecodeCursor("")
	if err != nil || c != nil {
		t.Fatalf("expected nil cursor for empty input, got %v %v", c, err)
	}
	want := Cursor{TS: time.Date(2025, 2, 3, 4, 5, 6, 7, time.UTC), ID: uuid.New()}
	got, err := DecodeCursor(EncodeCursor(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.TS.Equal(want.TS) || got.ID != want.ID {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	for _, bad := range []string{"!!!", "bm8tc2VwYXJhdG9y", EncodeCursor(Cursor{})[:4]} {
		if _, err := DecodeCursor(bad); !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("%q: expected ErrInvalidCursor, got %v", bad, err)
		}
	}
}
