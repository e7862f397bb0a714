package loader

import (
	"path/filepath"
	"testing"
	"time"

	"cdr-backend/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validatorNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func record(source, destination, startTime, service, usage string) Record {
	return Record{
		Message: model.InboundMessage{
			Source:      source,
			Destination: destination,
			StartTime:   startTime,
			Service:     service,
		},
		UsageText: usage,
	}
}

func TestValidateRecordAccepts(t *testing.T) {
	testCases := []struct {
		name string
		rec  Record
	}{
		{"語音", record("+886912345678", "886987654321", "2024-01-01T10:00:00", "VOICE", "12.5")},
		{"簡訊", record("886912345678", "886987654321", "2024-01-01T10:00:00", "sms", "1")},
		{"數據", record("886912345678", "https://example.com/path", "2024-01-01T10:00:00", "DATA", "512")},
		{"數據 IP 網址", record("886912345678", "http://10.0.0.1:8080", "2024-01-01T10:00:00", "DATA", "1")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NoError(t, ValidateRecord(tc.rec, validatorNow))
		})
	}
}

func TestValidateRecordRejects(t *testing.T) {
	testCases := []struct {
		name    string
		rec     Record
		problem string
	}{
		{"缺少欄位", record("", "886987654321", "2024-01-01T10:00:00", "VOICE", "1"), "Missing required field: source"},
		{"來源格式錯誤", record("abc", "886987654321", "2024-01-01T10:00:00", "VOICE", "1"), "Invalid source format"},
		{"未知服務類型", record("886912345678", "886987654321", "2024-01-01T10:00:00", "FAX", "1"), "Invalid service type"},
		{"語音目的地非電話", record("886912345678", "http://example.com", "2024-01-01T10:00:00", "VOICE", "1"), "Should be a phone number"},
		{"數據目的地非網址", record("886912345678", "886987654321", "2024-01-01T10:00:00", "DATA", "1"), "Invalid URL format"},
		{"用量非數字", record("886912345678", "886987654321", "2024-01-01T10:00:00", "VOICE", "lots"), "Usage must be a number"},
		{"負數用量", record("886912345678", "886987654321", "2024-01-01T10:00:00", "VOICE", "-1"), "Usage must be positive"},
		{"語音超過上限", record("886912345678", "886987654321", "2024-01-01T10:00:00", "VOICE", "1441"), "exceeds reasonable limit"},
		{"數據超過上限", record("886912345678", "http://example.com", "2024-01-01T10:00:00", "DATA", "100001"), "exceeds reasonable limit"},
		{"簡訊用量不為 1", record("886912345678", "886987654321", "2024-01-01T10:00:00", "SMS", "2"), "SMS usage must be exactly 1"},
		{"時間格式錯誤", record("886912345678", "886987654321", "2024/01/01", "VOICE", "1"), "Invalid datetime format"},
		{"未來時間", record("886912345678", "886987654321", "2024-06-02T00:00:00", "VOICE", "1"), "cannot be in the future"},
		{"過舊時間", record("886912345678", "886987654321", "2010-01-01T00:00:00", "VOICE", "1"), "unreasonably old"},
		{"來源與目的地相同", record("886912345678", "886912345678", "2024-01-01T10:00:00", "VOICE", "1"), "cannot be identical"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRecord(tc.rec, validatorNow)
			require.Error(t, err)
			var problems ValidationErrors
			require.ErrorAs(t, err, &problems)
			assert.Contains(t, err.Error(), tc.problem)
		})
	}
}

func TestValidateRecordCollectsAllProblems(t *testing.T) {
	err := ValidateRecord(record("abc", "886987654321", "2030-01-01T00:00:00", "SMS", "3"), validatorNow)

	var problems ValidationErrors
	require.ErrorAs(t, err, &problems)
	assert.Len(t, problems, 3)
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()

	assert.NoError(t, ValidateFile(writeFile(t, dir, "ok.csv", "source\n1\n")))
	assert.ErrorIs(t, ValidateFile(filepath.Join(dir, "missing.csv")), ErrFileNotFound)
	assert.ErrorIs(t, ValidateFile(writeFile(t, dir, "empty.json", "")), ErrFileEmpty)
	assert.ErrorIs(t, ValidateFile(writeFile(t, dir, "notes.txt", "x")), ErrUnsupportedFormat)
}
