package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/kanoo-op/PostureAI-sub004/internal/db"
	"github.com/kanoo-op/PostureAI-sub004/internal/pose"
	"github.com/kanoo-op/PostureAI-sub004/internal/video"
)

// wireFrame is one entry of a frames file. Timestamps are milliseconds from
// the start of the recording.
type wireFrame struct {
	Index      int       `json:"frameIndex"`
	Timestamp  float64   `json:"timestamp"`
	Pose       pose.Pose `json:"pose"`
	Confidence *float64  `json:"confidence,omitempty"`
}

// recording is a decoded frames file.
type recording struct {
	Hash   string // sha256 of the raw file, keys the analysis cache
	Frames []video.Frame
}

// Poses returns the recorded poses in frame order for a ReplayEstimator.
func (r *recording) Poses() []pose.Pose {
	out := make([]pose.Pose, len(r.Frames))
	for i, f := range r.Frames {
		out[i] = f.Pose
	}
	return out
}

// readRecording loads a frames file, or standard input when path is "-".
func readRecording(path string, stdin io.Reader) (*recording, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading frames: %w", err)
	}
	return decodeRecording(raw)
}

func decodeRecording(raw []byte) (*recording, error) {
	var wire []wireFrame
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decoding frames: %w", err)
	}
	if len(wire) == 0 {
		return nil, fmt.Errorf("decoding frames: no frames")
	}
	hash, err := db.HashVideo(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	frames := make([]video.Frame, len(wire))
	var prev time.Duration
	for i, w := range wire {
		if math.IsNaN(w.Timestamp) || w.Timestamp < 0 {
			return nil, fmt.Errorf("frame %d: invalid timestamp %v", i, w.Timestamp)
		}
		ts := time.Duration(w.Timestamp * float64(time.Millisecond))
		if i > 0 && ts < prev {
			return nil, fmt.Errorf("frame %d: timestamp %v before previous frame", i, ts)
		}
		prev = ts
		conf := w.Pose.MeanScore()
		if w.Confidence != nil {
			conf = *w.Confidence
		}
		frames[i] = video.Frame{Index: w.Index, Timestamp: ts, Pose: w.Pose, Confidence: conf}
	}
	return &recording{Hash: hash, Frames: frames}, nil
}
