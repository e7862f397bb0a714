package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseServiceType(t *testing.T) {
	testCases := []struct {
		input string
		want  ServiceType
		ok    bool
	}{
		{"VOICE", ServiceTypeVoice, true},
		{"sms", ServiceTypeSMS, true},
		{"Data", ServiceTypeData, true},
		{"FAX", "", false},
		{"", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, ok := ParseServiceType(tc.input)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormatUsage(t *testing.T) {
	testCases := []struct {
		name  string
		total string
		label string
		want  float64
	}{
		{"語音四捨五入到兩位", "12.345", "VOICE", 12.35},
		{"數據四捨五入到兩位", "4.445", "DATA", 4.45},
		{"簡訊四捨五入到整數", "11.5", "SMS", 12},
		{"簡訊 12.345 取整數", "12.345", "SMS", 12},
		{"簡訊小於 .5 捨去", "3.4", "SMS", 3},
		{"小寫標籤", "1.005", "voice", 1.01},
		{"未知類型保留原值", "1.23456", "FAX", 1.23456},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := FormatUsage(decimal.RequireFromString(tc.total), tc.label)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestUsageUnit(t *testing.T) {
	assert.Equal(t, "minutes", UsageUnit("VOICE"))
	assert.Equal(t, "MB", UsageUnit("data"))
	assert.Equal(t, "messages", UsageUnit("SMS"))
	assert.Equal(t, DefaultUsageUnit, UsageUnit("FAX"))
}

func TestAllServiceTypes(t *testing.T) {
	for _, st := range AllServiceTypes() {
		assert.True(t, st.IsValid(), st.String())
	}
	assert.False(t, ServiceType("").IsValid())
}
