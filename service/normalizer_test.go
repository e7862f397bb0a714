package service

import (
	"testing"

	"cdr-backend/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestNormalizeInboundComplete(t *testing.T) {
	now := *mustDateTime(t, "2024-06-01T12:00:00")
	msg := model.InboundMessage{
		Source:      "886912345678",
		Destination: "886987654321",
		StartTime:   "2024-01-01T10:00:00",
		Service:     "sms",
		Usage:       floatPtr(1),
		FileName:    "batch.csv",
	}

	cdr, events := NormalizeInbound(msg, now)

	assert.Empty(t, events)
	assert.Equal(t, int64(0), cdr.ID)
	assert.Equal(t, "886912345678", cdr.Source)
	assert.Equal(t, "886987654321", cdr.Destination)
	assert.Equal(t, "2024-01-01T10:00:00", cdr.StartTime.String())
	assert.Equal(t, model.ServiceTypeSMS, cdr.ServiceType)
	assert.Equal(t, 1.0, cdr.Usage)
	assert.Equal(t, "batch.csv", cdr.FileName)
}

func TestNormalizeInboundFallbacks(t *testing.T) {
	now := *mustDateTime(t, "2024-06-01T12:00:00")

	testCases := []struct {
		name      string
		msg       model.InboundMessage
		want      FallbackEvent
		wantStart string
		wantType  model.ServiceType
		wantUsage float64
	}{
		{
			name:      "缺少開始時間",
			msg:       model.InboundMessage{Service: "DATA", Usage: floatPtr(3)},
			want:      FallbackEvent{Field: InboundFieldStartTime, Reason: FallbackMissing, Applied: "2024-06-01T12:00:00"},
			wantStart: "2024-06-01T12:00:00",
			wantType:  model.ServiceTypeData,
			wantUsage: 3,
		},
		{
			name:      "無法解析的開始時間",
			msg:       model.InboundMessage{StartTime: "01/01/2024", Service: "DATA", Usage: floatPtr(3)},
			want:      FallbackEvent{Field: InboundFieldStartTime, Reason: FallbackUnparsable, RawValue: "01/01/2024", Applied: "2024-06-01T12:00:00"},
			wantStart: "2024-06-01T12:00:00",
			wantType:  model.ServiceTypeData,
			wantUsage: 3,
		},
		{
			name:      "缺少服務類型",
			msg:       model.InboundMessage{StartTime: "2024-01-01T10:00:00", Usage: floatPtr(2.5)},
			want:      FallbackEvent{Field: InboundFieldService, Reason: FallbackMissing, Applied: "VOICE"},
			wantStart: "2024-01-01T10:00:00",
			wantType:  model.ServiceTypeVoice,
			wantUsage: 2.5,
		},
		{
			name:      "未知服務類型",
			msg:       model.InboundMessage{StartTime: "2024-01-01T10:00:00", Service: "FAX", Usage: floatPtr(2.5)},
			want:      FallbackEvent{Field: InboundFieldService, Reason: FallbackUnrecognized, RawValue: "FAX", Applied: "VOICE"},
			wantStart: "2024-01-01T10:00:00",
			wantType:  model.ServiceTypeVoice,
			wantUsage: 2.5,
		},
		{
			name:      "缺少用量",
			msg:       model.InboundMessage{StartTime: "2024-01-01T10:00:00", Service: "VOICE"},
			want:      FallbackEvent{Field: InboundFieldUsage, Reason: FallbackMissing, Applied: "0"},
			wantStart: "2024-01-01T10:00:00",
			wantType:  model.ServiceTypeVoice,
			wantUsage: 0,
		},
		{
			name:      "無法解析的用量",
			msg:       model.InboundMessage{StartTime: "2024-01-01T10:00:00", Service: "VOICE", UsageRaw: "lots"},
			want:      FallbackEvent{Field: InboundFieldUsage, Reason: FallbackUnparsable, RawValue: "lots", Applied: "0"},
			wantStart: "2024-01-01T10:00:00",
			wantType:  model.ServiceTypeVoice,
			wantUsage: 0,
		},
		{
			name:      "負數用量",
			msg:       model.InboundMessage{StartTime: "2024-01-01T10:00:00", Service: "VOICE", Usage: floatPtr(-4.5)},
			want:      FallbackEvent{Field: InboundFieldUsage, Reason: FallbackNegative, RawValue: "-4.5", Applied: "0"},
			wantStart: "2024-01-01T10:00:00",
			wantType:  model.ServiceTypeVoice,
			wantUsage: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cdr, events := NormalizeInbound(tc.msg, now)
			require.Len(t, events, 1)
			assert.Equal(t, tc.want, events[0])
			assert.Equal(t, tc.wantStart, cdr.StartTime.String())
			assert.Equal(t, tc.wantType, cdr.ServiceType)
			assert.Equal(t, tc.wantUsage, cdr.Usage)
		})
	}
}

func TestNormalizeInboundEmptyMessage(t *testing.T) {
	now := *mustDateTime(t, "2024-06-01T12:00:00")

	cdr, events := NormalizeInbound(model.InboundMessage{}, now)

	require.Len(t, events, 3)
	assert.Equal(t, InboundFieldStartTime, events[0].Field)
	assert.Equal(t, InboundFieldService, events[1].Field)
	assert.Equal(t, InboundFieldUsage, events[2].Field)
	assert.True(t, cdr.Reportable())
	assert.Equal(t, "", cdr.Source)
}
