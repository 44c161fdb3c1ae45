package db

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kanoo-op/PostureAI-sub004/internal/exercise"
	"github.com/kanoo-op/PostureAI-sub004/internal/rom"
	"github.com/kanoo-op/PostureAI-sub004/internal/session"
	"github.com/kanoo-op/PostureAI-sub004/internal/velocity"
	"github.com/kanoo-op/PostureAI-sub004/internal/video"
)

func newTestDB(t *testing.T) (*DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "formcoach.db")
	db, err := NewDB(path)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, path
}

func TestPragmasApplied(t *testing.T) {
	db, _ := newTestDB(t)

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}
	var busyTimeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatalf("busy_timeout: %v", err)
	}
	if busyTimeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", busyTimeout)
	}
	var synchronous int
	if err := db.QueryRow("PRAGMA synchronous").Scan(&synchronous); err != nil {
		t.Fatalf("synchronous: %v", err)
	}
	if synchronous != 1 {
		t.Errorf("synchronous = %d, want 1 (NORMAL)", synchronous)
	}
}

func TestMigrationsReachLatest(t *testing.T) {
	db, path := newTestDB(t)
	migrations, err := getMigrationsFS()
	if err != nil {
		t.Fatal(err)
	}
	latest, err := GetLatestMigrationVersion(migrations)
	if err != nil {
		t.Fatal(err)
	}
	if latest != 3 {
		t.Errorf("latest = %d, want 3", latest)
	}
	st, err := db.GetMigrationStatus(migrations)
	if err != nil {
		t.Fatal(err)
	}
	want := MigrationStatus{Version: 3, Latest: 3, TableExists: true}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}

	// Reopening an up-to-date database is a no-op.
	db.Close()
	again, err := NewDB(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	again.Close()
}

func TestMigrateDownAndUp(t *testing.T) {
	db, _ := newTestDB(t)
	migrations, _ := getMigrationsFS()

	if err := db.MigrateDown(migrations); err != nil {
		t.Fatalf("down: %v", err)
	}
	if v, _, _ := db.MigrateVersion(migrations); v != 2 {
		t.Errorf("version after down = %d, want 2", v)
	}
	if err := db.PutAnalysisCache(context.Background(), "h", "c", &video.RepAnalysis{Exercise: exercise.Squat}); err == nil {
		t.Error("config_hash column should be gone after rolling back")
	}
	if err := db.MigrateDown(migrations); err != nil {
		t.Fatalf("second down: %v", err)
	}
	if _, err := db.ExecContext(context.Background(), `SELECT 1 FROM analysis_cache`); err == nil {
		t.Error("analysis cache should be gone at version 1")
	}
	if err := db.MigrateUp(migrations); err != nil {
		t.Fatalf("up: %v", err)
	}
	if err := db.PutAnalysisCache(context.Background(), "h", "c", &video.RepAnalysis{Exercise: exercise.Squat}); err != nil {
		t.Errorf("analysis cache after re-applying: %v", err)
	}
}

func TestGetLatestMigrationVersion(t *testing.T) {
	tests := []struct {
		name    string
		fsys    fstest.MapFS
		want    uint
		wantErr bool
	}{
		{
			name: "highest up file",
			fsys: fstest.MapFS{
				"000001_a.up.sql":   {},
				"000001_a.down.sql": {},
				"000007_b.up.sql":   {},
				"README.md":         {},
			},
			want: 7,
		},
		{name: "empty", fsys: fstest.MapFS{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GetLatestMigrationVersion(tt.fsys)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func testRecord(id string, started time.Time) *session.Record {
	return &session.Record{
		ID:        id,
		Exercise:  exercise.Squat,
		StartedAt: started,
		EndedAt:   started.Add(3 * time.Minute),
		Sets: []session.Set{{
			Exercise: exercise.Squat,
			Reps: []exercise.RepSummary{
				{Number: 1, StartedAt: time.Second, BottomAt: 2 * time.Second, EndedAt: 3 * time.Second, MeanScore: 82, WorstScore: 65, PeakAngle: 84, Frames: 60},
			},
			Tempos:       []velocity.TempoAnalysis{{Eccentric: time.Second, Concentric: time.Second, Ratio: 1, Controlled: true, Verdict: velocity.VerdictControlled}},
			Frames:       300,
			AverageScore: 80,
			BestScore:    82,
		}},
		RepCount:     1,
		AverageScore: 80,
		BestScore:    82,
		ROM: rom.Summary{
			SessionID: id,
			Joints:    []rom.JointSummary{{Key: rom.JointKey{Joint: rom.Knee, Side: rom.Left}, Min: 80, Max: 170, RangeAchieved: 90, Samples: 300}},
			Verdict:   rom.VerdictInsufficient,
		},
	}
}

func TestSessionRoundTrip(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	rec := testRecord("a", base)
	if err := db.SaveSession(ctx, rec); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	got, err := db.GetSession(ctx, "a")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}

	// Saving again replaces the row.
	rec.RepCount = 5
	if err := db.SaveSession(ctx, rec); err != nil {
		t.Fatal(err)
	}
	got, _ = db.GetSession(ctx, "a")
	if got.RepCount != 5 {
		t.Errorf("RepCount after update = %d, want 5", got.RepCount)
	}

	if _, err := db.GetSession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing session err = %v, want ErrNotFound", err)
	}
	if err := db.SaveSession(ctx, &session.Record{}); err == nil {
		t.Error("record without id should be rejected")
	}
}

func TestListAndDeleteSessions(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		if err := db.SaveSession(ctx, testRecord(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	all, err := db.ListSessions(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, s := range all {
		ids = append(ids, s.ID)
	}
	if diff := cmp.Diff([]string{"new", "mid", "old"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if !all[0].StartedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("StartedAt = %v", all[0].StartedAt)
	}
	if all[0].Exercise != exercise.Squat || all[0].RepCount != 1 {
		t.Errorf("summary = %+v", all[0])
	}

	two, _ := db.ListSessions(ctx, 2)
	if len(two) != 2 {
		t.Errorf("limit 2 returned %d", len(two))
	}

	if err := db.DeleteSession(ctx, "mid"); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteSession(ctx, "mid"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
	rest, _ := db.ListSessions(ctx, 0)
	if len(rest) != 2 {
		t.Errorf("after delete %d sessions, want 2", len(rest))
	}
}

func TestAnalysisCache(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	hash, err := HashVideo(strings.NewReader("frames"))
	if err != nil {
		t.Fatal(err)
	}
	if len(hash) != 64 {
		t.Fatalf("hash length = %d", len(hash))
	}
	other, _ := HashVideo(strings.NewReader("other frames"))
	if hash == other {
		t.Fatal("different inputs hashed equal")
	}

	ra := &video.RepAnalysis{
		Exercise: exercise.Squat,
		Reps: []video.RepResult{{
			Number: 1, StartFrame: 0, BottomFrame: 10, EndFrame: 20,
			StartedAt: 0, BottomAt: time.Second, EndedAt: 2 * time.Second,
			PeakAngle: 81, MeanScore: 77, WorstScore: 60,
			Tempo:       velocity.TempoAnalysis{Eccentric: time.Second, Concentric: time.Second, Ratio: 1, Verdict: velocity.VerdictControlled},
			Corrections: map[exercise.Correction]int{exercise.CorrectSlowDown: 2},
		}},
		TotalFrames:  21,
		UsableFrames: 21,
		AverageScore: 77,
		Smoother:     video.SmootherSavitzkyGolay,
	}

	cfg := video.DefaultConfig()
	cfgHash, err := HashConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	again, _ := HashConfig(video.DefaultConfig())
	if again != cfgHash {
		t.Fatal("equal configs hashed differently")
	}
	cfg.SavGolWindow += 2
	otherCfg, _ := HashConfig(cfg)
	if otherCfg == cfgHash {
		t.Fatal("different configs hashed equal")
	}

	if _, err := db.GetAnalysisCache(ctx, hash, cfgHash, exercise.Squat); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty cache err = %v", err)
	}
	if err := db.PutAnalysisCache(ctx, hash, cfgHash, ra); err != nil {
		t.Fatalf("PutAnalysisCache: %v", err)
	}
	got, err := db.GetAnalysisCache(ctx, hash, cfgHash, exercise.Squat)
	if err != nil {
		t.Fatalf("GetAnalysisCache: %v", err)
	}
	if diff := cmp.Diff(ra, got); diff != "" {
		t.Errorf("analysis mismatch (-want +got):\n%s", diff)
	}
	if _, err := db.GetAnalysisCache(ctx, hash, cfgHash, exercise.Lunge); !errors.Is(err, ErrNotFound) {
		t.Errorf("other exercise err = %v", err)
	}
	if _, err := db.GetAnalysisCache(ctx, hash, otherCfg, exercise.Squat); !errors.Is(err, ErrNotFound) {
		t.Errorf("other config err = %v", err)
	}

	// The same video under another config is a separate entry.
	if err := db.PutAnalysisCache(ctx, hash, otherCfg, &video.RepAnalysis{Exercise: exercise.Squat}); err != nil {
		t.Fatalf("PutAnalysisCache other config: %v", err)
	}
	if got, _ := db.GetAnalysisCache(ctx, hash, cfgHash, exercise.Squat); got == nil || len(got.Reps) != 1 {
		t.Errorf("first config entry overwritten: %+v", got)
	}

	n, err := db.PruneAnalyses(ctx, time.Now().Add(-time.Hour))
	if err != nil || n != 0 {
		t.Errorf("prune old = %d, %v", n, err)
	}
	n, err = db.PruneAnalyses(ctx, time.Now().Add(time.Hour))
	if err != nil || n != 2 {
		t.Errorf("prune all = %d, %v", n, err)
	}
}

func TestRunMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.db")

	var out bytes.Buffer
	if err := RunMigrateCommand([]string{"status"}, path, &out); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out.String(), "Current version: 0") || !strings.Contains(out.String(), "Pending: 3") {
		t.Errorf("fresh status output:\n%s", out.String())
	}

	out.Reset()
	if err := RunMigrateCommand([]string{"up"}, path, &out); err != nil {
		t.Fatalf("up: %v", err)
	}
	if !strings.Contains(out.String(), "Current version: 3") {
		t.Errorf("up output:\n%s", out.String())
	}

	out.Reset()
	if err := RunMigrateCommand([]string{"version", "1"}, path, &out); err != nil {
		t.Fatalf("version 1: %v", err)
	}
	if !strings.Contains(out.String(), "Current version: 1") {
		t.Errorf("version output:\n%s", out.String())
	}

	tests := []struct {
		name string
		args []string
	}{
		{"no action", nil},
		{"unknown action", []string{"sideways"}},
		{"version without number", []string{"version"}},
		{"bad force number", []string{"force", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := RunMigrateCommand(tt.args, path, &buf); !errors.Is(err, ErrUsage) {
				t.Errorf("err = %v, want ErrUsage", err)
			}
		})
	}

	out.Reset()
	if err := RunMigrateCommand([]string{"help"}, path, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Usage: formcoach migrate") {
		t.Errorf("help output:\n%s", out.String())
	}
}
