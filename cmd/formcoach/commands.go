package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/kanoo-op/PostureAI-sub004/internal/db"
	"github.com/kanoo-op/PostureAI-sub004/internal/diagnostics"
	"github.com/kanoo-op/PostureAI-sub004/internal/exercise"
	"github.com/kanoo-op/PostureAI-sub004/internal/i18n"
	"github.com/kanoo-op/PostureAI-sub004/internal/monitoring"
	"github.com/kanoo-op/PostureAI-sub004/internal/pose"
	"github.com/kanoo-op/PostureAI-sub004/internal/rom"
	"github.com/kanoo-op/PostureAI-sub004/internal/session"
	"github.com/kanoo-op/PostureAI-sub004/internal/timeutil"
	"github.com/kanoo-op/PostureAI-sub004/internal/units"
	"github.com/kanoo-op/PostureAI-sub004/internal/video"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// resolveExercise parses name, or detects the exercise when name is empty.
func resolveExercise(ctx context.Context, name string, rec *recording, cfg video.Config) (exercise.Type, error) {
	if name != "" {
		return exercise.ParseType(name)
	}
	res := video.Detect(ctx, rec.Frames, cfg)
	if res.Status != video.StatusDetected {
		return "", fmt.Errorf("could not detect exercise (%s, confidence %.2f); pass -exercise", res.Status, res.Confidence)
	}
	return res.Exercise, nil
}

func runReplay(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("replay", stderr)
	var c common
	c.register(fs)
	exName := fs.String("exercise", "", "Exercise to analyse (detected when empty)")
	mirror := fs.Bool("mirror", false, "Mirror frames from a front camera")
	locale := fs.String("locale", "en", "Feedback language")
	dbPath := fs.String("db", "", "Store the session in this SQLite database")
	plotDir := fs.String("plots", "", "Write PNG trace plots to this directory")
	htmlFile := fs.String("html", "", "Write an interactive HTML trace to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: formcoach replay [options] <frames.json|->")
		return usageError(fs)
	}

	tuning, err := c.apply(stderr)
	if err != nil {
		return err
	}
	rec, err := readRecording(fs.Arg(0), os.Stdin)
	if err != nil {
		return err
	}
	ctx := context.Background()
	ex, err := resolveExercise(ctx, *exName, rec, video.ConfigFromTuning(tuning))
	if err != nil {
		return err
	}
	tr, err := i18n.New()
	if err != nil {
		return err
	}

	var store session.Store
	if *dbPath != "" {
		d, err := db.NewDB(*dbPath)
		if err != nil {
			return err
		}
		defer d.Close()
		store = d
	}

	cfg := session.ConfigFromTuning(tuning)
	cfg.Mirror = *mirror
	// Session time follows the recording, anchored at the replay start.
	clock := timeutil.NewStreamClock(time.Now().UTC())
	sess, err := session.New(ex, cfg, clock, store)
	if err != nil {
		return err
	}
	trace := diagnostics.NewTraceRecorder(ex, cfg.Exercise)
	id, err := sess.Start()
	if err != nil {
		return err
	}

	est := pose.NewReplayEstimator(rec.Poses())
	defer est.Close()
	for _, vf := range rec.Frames {
		p, err := est.Estimate(ctx, nil)
		if err != nil {
			return err
		}
		f := pose.Frame{Pose: p, Timestamp: vf.Timestamp}
		clock.Observe(f.Timestamp)
		res, err := sess.ProcessFrame(f)
		if err != nil {
			return err
		}
		trace.Record(res.Result)
		if c.jsonOut {
			continue
		}
		for _, m := range res.Messages {
			if m.Key == exercise.MsgLowConfidence {
				monitoring.Debugf("%v: low confidence", f.Timestamp)
				continue
			}
			fmt.Fprintf(stdout, "%8.2fs  %s\n", f.Timestamp.Seconds(), tr.Localize(*locale, m))
		}
		if res.RepCompleted {
			fmt.Fprintf(stdout, "%8.2fs  rep %d  score %.0f\n", f.Timestamp.Seconds(), res.RepCount, res.Score)
		}
	}

	record, err := sess.Stop(ctx)
	if err != nil {
		return err
	}
	if *plotDir != "" {
		files, err := trace.SavePlots(*plotDir)
		if err != nil {
			return err
		}
		for _, f := range files {
			monitoring.Logf("wrote %s", f)
		}
	}
	if *htmlFile != "" {
		if err := writeHTML(trace, *htmlFile); err != nil {
			return err
		}
		monitoring.Logf("wrote %s", *htmlFile)
	}

	if c.jsonOut {
		return writeJSON(stdout, record)
	}
	fmt.Fprintf(stdout, "\nsession %s: %s, %d reps, average score %.1f, best %.1f, %v\n",
		id, record.Exercise, record.RepCount, record.AverageScore, record.BestScore, record.Duration().Round(time.Millisecond))
	if len(record.ROM.Joints) > 0 {
		fmt.Fprintf(stdout, "mobility %.0f (%s)\n", record.ROM.MobilityScore, record.ROM.Verdict)
	}
	return nil
}

func writeHTML(trace *diagnostics.TraceRecorder, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := trace.RenderHTML(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runSegment(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("segment", stderr)
	var c common
	c.register(fs)
	exName := fs.String("exercise", "", "Exercise to segment (detected when empty)")
	dbPath := fs.String("db", "", "Cache analyses in this SQLite database")
	noCache := fs.Bool("no-cache", false, "Ignore cached analyses")
	angleUnits := fs.String("units", units.Degrees, "Angle units: "+units.GetValidUnitsString())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !units.IsValid(*angleUnits) {
		return fmt.Errorf("invalid -units %q, want one of %s", *angleUnits, units.GetValidUnitsString())
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: formcoach segment [options] <frames.json|->")
		return usageError(fs)
	}

	tuning, err := c.apply(stderr)
	if err != nil {
		return err
	}
	rec, err := readRecording(fs.Arg(0), os.Stdin)
	if err != nil {
		return err
	}
	ctx := context.Background()
	cfg := video.ConfigFromTuning(tuning)
	ex, err := resolveExercise(ctx, *exName, rec, cfg)
	if err != nil {
		return err
	}

	var cache *db.DB
	if *dbPath != "" {
		if cache, err = db.NewDB(*dbPath); err != nil {
			return err
		}
		defer cache.Close()
	}

	cfgHash, err := db.HashConfig(cfg)
	if err != nil {
		return err
	}
	var ra *video.RepAnalysis
	if cache != nil && !*noCache {
		ra, err = cache.GetAnalysisCache(ctx, rec.Hash, cfgHash, ex)
		switch {
		case err == nil:
			monitoring.Logf("segment: cache hit %s", rec.Hash[:12])
		case errors.Is(err, db.ErrNotFound):
			ra = nil
		default:
			return err
		}
	}
	if ra == nil {
		if ra, err = video.SegmentReps(ctx, rec.Frames, ex, cfg); err != nil {
			return err
		}
		if cache != nil {
			if err := cache.PutAnalysisCache(ctx, rec.Hash, cfgHash, ra); err != nil {
				return err
			}
		}
	}

	if c.jsonOut {
		return writeJSON(stdout, ra)
	}
	fmt.Fprintf(stdout, "%s: %d reps, average score %.1f (%d/%d usable frames, %d dropped, %s)\n\n",
		ra.Exercise, len(ra.Reps), ra.AverageScore, ra.UsableFrames, ra.TotalFrames, ra.Dropped, ra.Smoother)
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REP\tSTART\tEND\tPEAK\tSCORE\tWORST\tTEMPO\tRATIO")
	for _, r := range ra.Reps {
		fmt.Fprintf(w, "%d\t%.2fs\t%.2fs\t%.2f%s\t%.1f\t%.1f\t%s\t%.2f\n",
			r.Number, r.StartedAt.Seconds(), r.EndedAt.Seconds(),
			units.ConvertAngle(r.PeakAngle, *angleUnits), units.Symbol(*angleUnits),
			r.MeanScore, r.WorstScore, r.Tempo.Verdict, r.Tempo.Ratio)
	}
	return w.Flush()
}

func runDetect(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("detect", stderr)
	var c common
	c.register(fs)
	timeout := fs.Duration("timeout", 0, "Detection time limit (defaults to the tuning value)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: formcoach detect [options] <frames.json|->")
		return usageError(fs)
	}

	tuning, err := c.apply(stderr)
	if err != nil {
		return err
	}
	rec, err := readRecording(fs.Arg(0), os.Stdin)
	if err != nil {
		return err
	}
	cfg := video.ConfigFromTuning(tuning)
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	res := video.Detect(context.Background(), rec.Frames, cfg)
	if c.jsonOut {
		return writeJSON(stdout, res)
	}
	if res.Status == video.StatusDetected {
		fmt.Fprintf(stdout, "%s (confidence %.2f, %d frames)\n", res.Exercise, res.Confidence, res.FramesUsed)
	} else {
		fmt.Fprintf(stdout, "%s (%d frames)\n", res.Status, res.FramesUsed)
	}
	for _, alt := range res.Alternatives {
		fmt.Fprintf(stdout, "  %-10s %.2f\n", alt.Exercise, alt.Similarity)
	}
	return nil
}

func runSessions(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("sessions", stderr)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	limit := fs.Int("limit", 20, "Sessions to list (0 for all)")
	id := fs.String("id", "", "Print the full record of this session")
	baseline := fs.String("baseline", "", "With -id, print the range of motion change against this session")
	del := fs.String("delete", "", "Delete this session")
	prune := fs.Duration("prune-cache", 0, "Drop cached analyses older than this")
	tz := fs.String("tz", "", "Display times in this zone (local when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tz != "" && !units.IsTimezoneValid(*tz) {
		return fmt.Errorf("invalid -tz %q", *tz)
	}

	d, err := db.NewDB(*dbPath)
	if err != nil {
		return err
	}
	defer d.Close()
	ctx := context.Background()

	switch {
	case *del != "":
		if err := d.DeleteSession(ctx, *del); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "deleted %s\n", *del)
		return nil
	case *id != "":
		rec, err := d.GetSession(ctx, *id)
		if err != nil {
			return err
		}
		if *baseline == "" {
			return writeJSON(stdout, rec)
		}
		base, err := d.GetSession(ctx, *baseline)
		if err != nil {
			return err
		}
		return writeJSON(stdout, rom.DefaultConfig().Compare(rec.ROM, base.ROM))
	case *prune > 0:
		n, err := d.PruneAnalyses(ctx, time.Now().Add(-*prune))
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "pruned %d cached analyses\n", n)
		return nil
	}

	list, err := d.ListSessions(ctx, *limit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(stdout, "no sessions")
		return nil
	}
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEXERCISE\tSTARTED\tDURATION\tREPS\tSCORE")
	for _, s := range list {
		started, err := units.ConvertTime(s.StartedAt, *tz)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%d\t%.1f\n",
			s.ID, s.Exercise, started.Format(time.RFC3339), s.EndedAt.Sub(s.StartedAt).Round(time.Second),
			s.RepCount, s.AverageScore)
	}
	return w.Flush()
}
