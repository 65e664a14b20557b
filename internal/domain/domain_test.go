package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKYCReviewDate(t *testing.T) {
	tests := []struct {
		raw  string
		want Date
		ok   bool
	}{
		{"2024-10-31", NewDate(2024, time.October, 31), true},
		{"31/10/2024", NewDate(2024, time.October, 31), true},
		{"2024-10-31T05:00:00+10:00", NewDate(2024, time.October, 31), true},
		{"2024-10-31T23:30:00-05:00", NewDate(2024, time.October, 31), true},
		{"2024-10-31T00:00:00Z", NewDate(2024, time.October, 31), true},
		{"", Date{}, false},
		{"last spring", Date{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ClientProfile{KYCLastReviewedAt: tt.raw}.KYCReviewDate()
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.want.Equal(got.Time), "got %s", got)
		})
	}
}

func TestDirectionUnmarshal(t *testing.T) {
	var tx TransactionRecord
	require.NoError(t, json.Unmarshal([]byte(`{"direction":" OUT "}`), &tx))
	assert.Equal(t, DirectionOut, tx.Direction)
	assert.True(t, tx.Direction.Valid())

	require.NoError(t, json.Unmarshal([]byte(`{"direction":"In"}`), &tx))
	assert.Equal(t, DirectionIn, tx.Direction)

	require.NoError(t, json.Unmarshal([]byte(`{"direction":"outbound"}`), &tx))
	assert.False(t, tx.Direction.Valid())

	assert.Error(t, json.Unmarshal([]byte(`{"direction":1}`), &tx))
	assert.False(t, Direction("").Valid())
}
