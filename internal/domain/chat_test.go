package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTitle(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"short message kept as-is", "Hello", "Hello"},
		{"exactly fifty characters kept", strings.Repeat("a", 50), strings.Repeat("a", 50)},
		{"longer message truncated", strings.Repeat("a", 51), strings.Repeat("a", 50) + "..."},
		{"multibyte runes counted as characters", strings.Repeat("é", 60), strings.Repeat("é", 50) + "..."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveTitle(tc.input))
		})
	}
}

func TestMessageIsValid(t *testing.T) {
	valid := Message{ChatID: 1, Role: RoleUser, Content: "hi"}
	assert.NoError(t, valid.IsValid())

	assert.Error(t, (&Message{Role: RoleUser, Content: "hi"}).IsValid())
	assert.Error(t, (&Message{ChatID: 1, Role: "system", Content: "hi"}).IsValid())
	assert.Error(t, (&Message{ChatID: 1, Role: RoleAssistant}).IsValid())
}

func TestSameUTCDay(t *testing.T) {
	record := UsageRecord{ResetDate: time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC)}

	assert.True(t, record.SameUTCDay(time.Date(2025, 3, 10, 0, 0, 1, 0, time.UTC)))
	assert.False(t, record.SameUTCDay(time.Date(2025, 3, 11, 0, 0, 1, 0, time.UTC)))

	// Local times are compared on the UTC calendar.
	est := time.FixedZone("EST", -5*3600)
	assert.False(t, record.SameUTCDay(time.Date(2025, 3, 10, 20, 0, 0, 0, est))) // 2025-03-11 UTC
}
