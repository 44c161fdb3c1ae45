package units

import (
	"testing"
	"time"
)

func TestIsTimezoneValid(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		expected bool
	}{
		{"valid UTC", "UTC", true},
		{"valid Seoul", "Asia/Seoul", true},
		{"invalid", "Invalid/Timezone", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if res := IsTimezoneValid(tt.timezone); res != tt.expected {
				t.Errorf("IsTimezoneValid(%s) = %v, want %v", tt.timezone, res, tt.expected)
			}
		})
	}
}

func TestConvertTime(t *testing.T) {
	utc := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := ConvertTime(utc, "Asia/Seoul")
	if err != nil {
		t.Fatal(err)
	}
	if got.Hour() != 21 || !got.Equal(utc) {
		t.Errorf("Seoul time = %v", got)
	}

	got, err = ConvertTime(utc, "UTC")
	if err != nil || got.Location() != time.UTC {
		t.Errorf("UTC conversion = %v, %v", got, err)
	}

	if _, err := ConvertTime(utc, "Invalid/Timezone"); err == nil {
		t.Error("expected error for invalid timezone")
	}
}
