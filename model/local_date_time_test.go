package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestParseLocalDateTime(t *testing.T) {
	testCases := []struct {
		input string
		want  string
	}{
		{"2024-01-01T10:00:00", "2024-01-01T10:00:00"},
		{"2024-01-01T10:00", "2024-01-01T10:00:00"},
		{"2024-03-05T23:59:59.5", "2024-03-05T23:59:59.5"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseLocalDateTime(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String())
		})
	}
}

func TestParseLocalDateTimeRejectsInvalid(t *testing.T) {
	for _, input := range []string{"", "2024-01-01", "2024-01-01 10:00:00", "2024-01-01T10:00:00Z", "yesterday"} {
		_, err := ParseLocalDateTime(input)
		assert.Error(t, err, input)
	}
}

func TestLocalDateTimeDateString(t *testing.T) {
	dt, err := ParseLocalDateTime("2024-01-02T23:30:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", dt.DateString())
}

func TestNewLocalDateTimeKeepsWallClock(t *testing.T) {
	taipei := time.FixedZone("CST", 8*3600)
	dt := NewLocalDateTime(time.Date(2024, 1, 2, 1, 30, 0, 0, taipei))
	assert.Equal(t, "2024-01-02T01:30:00", dt.String())
	assert.Equal(t, time.UTC, dt.Location())
}

func TestLocalDateTimeJSON(t *testing.T) {
	var cdr Cdr
	err := json.Unmarshal([]byte(`{"source":"123","startTime":"2024-01-01T10:00:00","serviceType":"VOICE","usage":1.5}`), &cdr)
	require.NoError(t, err)
	require.NotNil(t, cdr.StartTime)
	assert.Equal(t, "2024-01-01T10:00:00", cdr.StartTime.String())

	out, err := json.Marshal(cdr)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"startTime":"2024-01-01T10:00:00"`)

	err = json.Unmarshal([]byte(`{"startTime":"not-a-date"}`), &cdr)
	assert.Error(t, err)
}

func TestLocalDateTimeBSON(t *testing.T) {
	dt, err := ParseLocalDateTime("2024-01-01T10:00:00")
	require.NoError(t, err)

	data, err := bson.Marshal(Cdr{ID: 1, StartTime: &dt, ServiceType: ServiceTypeVoice})
	require.NoError(t, err)

	var decoded Cdr
	require.NoError(t, bson.Unmarshal(data, &decoded))
	require.NotNil(t, decoded.StartTime)
	assert.Equal(t, dt.String(), decoded.StartTime.String())
	assert.Equal(t, ServiceTypeVoice, decoded.ServiceType)
}

func TestCdrClone(t *testing.T) {
	dt, err := ParseLocalDateTime("2024-01-01T10:00:00")
	require.NoError(t, err)
	orig := &Cdr{ID: 7, Source: "123", StartTime: &dt, ServiceType: ServiceTypeSMS}

	clone := orig.Clone()
	clone.StartTime.Time = clone.StartTime.Add(time.Hour)
	clone.Source = "456"

	assert.Equal(t, "2024-01-01T10:00:00", orig.StartTime.String())
	assert.Equal(t, "123", orig.Source)
	assert.True(t, orig.Reportable())
	assert.False(t, (&Cdr{ServiceType: ServiceTypeSMS}).Reportable())
}
