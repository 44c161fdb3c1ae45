package i18n

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanoo-op/PostureAI-sub004/internal/exercise"
)

func TestLocalize(t *testing.T) {
	tr, err := New()
	require.NoError(t, err)

	tests := []struct {
		name   string
		locale string
		msg    exercise.Message
		want   string
	}{
		{
			name:   "english correction",
			locale: "en",
			msg:    exercise.Message{Key: exercise.CorrectionKey(exercise.CorrectChestUp)},
			want:   "Keep your chest up",
		},
		{
			name:   "korean correction",
			locale: "ko",
			msg:    exercise.Message{Key: exercise.CorrectionKey(exercise.CorrectRaiseHips)},
			want:   "엉덩이를 올리세요",
		},
		{
			name:   "template parameter",
			locale: "en",
			msg:    exercise.Message{Key: exercise.MsgRepComplete, Params: map[string]any{"count": 3}},
			want:   "Rep 3 complete",
		},
		{
			name:   "checkpoint parameter is localised",
			locale: "ko",
			msg:    exercise.Message{Key: exercise.MsgFeedbackGood, Params: map[string]any{"checkpoint": "depth"}},
			want:   "깊이 좋아요",
		},
		{
			name:   "unknown locale falls back to english",
			locale: "fr",
			msg:    exercise.Message{Key: exercise.MsgHoldStarted},
			want:   "Hold started",
		},
		{
			name:   "regional variant",
			locale: "ko-KR",
			msg:    exercise.Message{Key: exercise.MsgHoldStarted},
			want:   "버티기 시작",
		},
		{
			name:   "unknown key renders as key",
			locale: "en",
			msg:    exercise.Message{Key: "no.such.key"},
			want:   "no.such.key",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tr.Localize(tt.locale, tt.msg))
		})
	}
}

func TestLocalizeDoesNotMutateParams(t *testing.T) {
	tr := MustNew()
	params := map[string]any{"checkpoint": "neck"}
	tr.Localize("en", exercise.Message{Key: exercise.MsgFeedbackGood, Params: params})
	assert.Equal(t, "neck", params["checkpoint"])
}

func TestLocalizeAll(t *testing.T) {
	tr := MustNew()
	got := tr.LocalizeAll("en", []exercise.Message{
		{Key: exercise.CorrectionKey(exercise.CorrectSlowDown)},
		{Key: exercise.MsgHoldStarted},
	}, " / ")
	assert.Equal(t, "Slow down / Hold started", got)
}

func TestLanguages(t *testing.T) {
	assert.ElementsMatch(t, []string{"en", "ko"}, MustNew().Languages())
}

// Every key the analyzers can emit must exist in every locale.
func TestLocalesAreComplete(t *testing.T) {
	var keys []string
	for _, c := range []exercise.Correction{
		exercise.CorrectGoDeeper, exercise.CorrectReduceDepth, exercise.CorrectChestUp,
		exercise.CorrectKneesOut, exercise.CorrectNarrowKnees, exercise.CorrectBalanceWeight,
		exercise.CorrectSoftenKnees, exercise.CorrectHingeAtHips, exercise.CorrectFinishLockout,
		exercise.CorrectNeutralNeck, exercise.CorrectRaiseHips, exercise.CorrectLowerHips,
		exercise.CorrectLowerBackKnee, exercise.CorrectSlowDown, exercise.CorrectSpeedUp,
	} {
		keys = append(keys, exercise.CorrectionKey(c))
	}
	keys = append(keys, exercise.MsgFeedbackGood, exercise.MsgLowConfidence, exercise.MsgRepComplete,
		exercise.MsgStateReset, exercise.MsgHoldStarted, exercise.MsgHoldBroken)

	en := readLocale(t, "locales/en.json")
	ko := readLocale(t, "locales/ko.json")
	for _, k := range keys {
		assert.Contains(t, en, k)
		assert.Contains(t, ko, k)
	}
	for k := range en {
		assert.Contains(t, ko, k, "ko missing %s", k)
	}
}

func readLocale(t *testing.T, name string) map[string]string {
	t.Helper()
	data, err := localeFS.ReadFile(name)
	require.NoError(t, err)
	var m map[string]string
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}
