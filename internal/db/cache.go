package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kanoo-op/PostureAI-sub004/internal/exercise"
	"github.com/kanoo-op/PostureAI-sub004/internal/video"
)

// HashVideo returns the hex SHA-256 of a video or frame dump. It is the
// cache key of an analysis.
func HashVideo(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing video: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashConfig returns the hex SHA-256 of the JSON encoding of an analysis
// configuration. Analyses cached under one configuration are not served for
// another.
func HashConfig(cfg any) (string, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("hashing config: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// PutAnalysisCache caches the segmentation of the video with the given hash
// produced under the configuration with configHash.
func (db *DB) PutAnalysisCache(ctx context.Context, hash, configHash string, ra *video.RepAnalysis) error {
	payload, err := json.Marshal(ra)
	if err != nil {
		return fmt.Errorf("encoding analysis: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT OR REPLACE INTO analysis_cache (video_hash, exercise, config_hash, rep_count, created_unix_ms, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		hash, string(ra.Exercise), configHash, len(ra.Reps), time.Now().UnixMilli(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("caching analysis %s/%s: %w", hash, ra.Exercise, err)
	}
	return nil
}

// GetAnalysisCache returns a cached segmentation or ErrNotFound.
func (db *DB) GetAnalysisCache(ctx context.Context, hash, configHash string, ex exercise.Type) (*video.RepAnalysis, error) {
	var payload string
	err := db.QueryRowContext(ctx,
		`SELECT payload FROM analysis_cache WHERE video_hash = ? AND exercise = ? AND config_hash = ?`,
		hash, string(ex), configHash,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis %s/%s: %w", hash, ex, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading analysis %s/%s: %w", hash, ex, err)
	}
	var ra video.RepAnalysis
	if err := json.Unmarshal([]byte(payload), &ra); err != nil {
		return nil, fmt.Errorf("decoding analysis %s/%s: %w", hash, ex, err)
	}
	return &ra, nil
}

// PruneAnalyses drops cache entries created before cutoff and returns how
// many were removed.
func (db *DB) PruneAnalyses(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM analysis_cache WHERE created_unix_ms < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("pruning analysis cache: %w", err)
	}
	return res.RowsAffected()
}
