package service

import (
	"context"
	"testing"

	"cdr-backend/data-models/report"
	"cdr-backend/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reportFixture 語音 2.222+3.333、數據 1.111+3.334 兩組用於驗證進位
func reportFixture(t *testing.T) *ReportService {
	t.Helper()
	store := seedStore(t,
		newCdr(t, "111", "222", "2024-01-01T10:00:00", model.ServiceTypeVoice, 2.222),
		newCdr(t, "111", "333", "2024-01-01T11:00:00", model.ServiceTypeVoice, 3.333),
		newCdr(t, "444", "http://example.com", "2024-01-02T09:00:00", model.ServiceTypeData, 1.111),
		newCdr(t, "444", "http://example.com", "2024-01-02T23:59:59", model.ServiceTypeData, 3.334),
		newCdr(t, "111", "222", "2024-01-01T12:00:00", model.ServiceTypeSMS, 1),
		newCdr(t, "555", "222", "2024-01-03T00:00:00", model.ServiceTypeSMS, 1),
		// 缺少開始時間，不列入任何報表
		&model.Cdr{Source: "999", Destination: "888", ServiceType: model.ServiceTypeVoice, Usage: 100},
	)
	return NewReportService(testLogger, store)
}

func TestAggregateByDay(t *testing.T) {
	svc := reportFixture(t)

	rows, err := svc.AggregateByDay(context.Background(), ReportFilter{})
	require.NoError(t, err)

	assert.Equal(t, []report.DailyUsage{
		{Date: "2024-01-01", TotalUsage: 1, InteractionCount: 1, ServiceType: "SMS", UsageUnit: "messages"},
		{Date: "2024-01-01", TotalUsage: 5.56, InteractionCount: 2, ServiceType: "VOICE", UsageUnit: "minutes"},
		{Date: "2024-01-02", TotalUsage: 4.45, InteractionCount: 2, ServiceType: "DATA", UsageUnit: "MB"},
		{Date: "2024-01-03", TotalUsage: 1, InteractionCount: 1, ServiceType: "SMS", UsageUnit: "messages"},
	}, rows)
}

func TestAggregateByDayFilters(t *testing.T) {
	svc := reportFixture(t)
	ctx := context.Background()

	testCases := []struct {
		name   string
		filter ReportFilter
		want   []report.DailyUsage
	}{
		{
			name:   "日期區間包含邊界",
			filter: ReportFilter{StartDate: "2024-01-02", EndDate: "2024-01-02"},
			want: []report.DailyUsage{
				{Date: "2024-01-02", TotalUsage: 4.45, InteractionCount: 2, ServiceType: "DATA", UsageUnit: "MB"},
			},
		},
		{
			name:   "服務類型不分大小寫",
			filter: ReportFilter{ServiceType: "voice", StartDate: "2024-01-01", EndDate: "2024-01-01"},
			want: []report.DailyUsage{
				{Date: "2024-01-01", TotalUsage: 5.56, InteractionCount: 2, ServiceType: "VOICE", UsageUnit: "minutes"},
			},
		},
		{
			name:   "只有起日",
			filter: ReportFilter{StartDate: "2024-01-03"},
			want: []report.DailyUsage{
				{Date: "2024-01-03", TotalUsage: 1, InteractionCount: 1, ServiceType: "SMS", UsageUnit: "messages"},
			},
		},
		{
			name:   "區間內沒有資料",
			filter: ReportFilter{StartDate: "2025-01-01"},
			want:   []report.DailyUsage{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rows, err := svc.AggregateByDay(ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, rows)
		})
	}
}

func TestAggregateByServiceType(t *testing.T) {
	svc := reportFixture(t)

	rows, err := svc.AggregateByServiceType(context.Background(), ReportFilter{})
	require.NoError(t, err)

	assert.Equal(t, []report.ServiceTypeUsage{
		{ServiceType: "DATA", TotalUsage: 4.45, CallCount: 2},
		{ServiceType: "SMS", TotalUsage: 2, CallCount: 2},
		{ServiceType: "VOICE", TotalUsage: 5.56, CallCount: 2},
	}, rows)
}

func TestAggregateBySource(t *testing.T) {
	svc := reportFixture(t)

	rows, err := svc.AggregateBySource(context.Background(), ReportFilter{})
	require.NoError(t, err)

	assert.Equal(t, []report.SourceUsage{
		{Source: "111", TotalUsage: 5.56, CallCount: 2, ServiceType: "VOICE"},
		{Source: "444", TotalUsage: 4.45, CallCount: 2, ServiceType: "DATA"},
		{Source: "111", TotalUsage: 1, CallCount: 1, ServiceType: "SMS"},
		{Source: "555", TotalUsage: 1, CallCount: 1, ServiceType: "SMS"},
	}, rows)
}

func TestAggregateByDestination(t *testing.T) {
	svc := reportFixture(t)

	rows, err := svc.AggregateByDestination(context.Background(), ReportFilter{})
	require.NoError(t, err)

	assert.Equal(t, []report.DestinationUsage{
		{Destination: "http://example.com", TotalUsage: 4.45, CallCount: 2, ServiceType: "DATA"},
		{Destination: "333", TotalUsage: 3.33, CallCount: 1, ServiceType: "VOICE"},
		{Destination: "222", TotalUsage: 2.22, CallCount: 1, ServiceType: "VOICE"},
		{Destination: "222", TotalUsage: 2, CallCount: 2, ServiceType: "SMS"},
	}, rows)
}

func TestAggregateDayAndServiceViewsAgree(t *testing.T) {
	svc := reportFixture(t)
	ctx := context.Background()

	days, err := svc.AggregateByDay(ctx, ReportFilter{})
	require.NoError(t, err)
	services, err := svc.AggregateByServiceType(ctx, ReportFilter{})
	require.NoError(t, err)

	perTypeCount := make(map[string]int64)
	perTypeTotal := make(map[string]float64)
	for _, d := range days {
		perTypeCount[d.ServiceType] += d.InteractionCount
		perTypeTotal[d.ServiceType] += d.TotalUsage
	}
	require.Len(t, services, len(perTypeCount))
	for _, s := range services {
		assert.Equal(t, s.CallCount, perTypeCount[s.ServiceType], s.ServiceType)
		assert.InDelta(t, s.TotalUsage, perTypeTotal[s.ServiceType], 0.005, s.ServiceType)
	}
}

func TestAggregateDispatch(t *testing.T) {
	svc := reportFixture(t)
	ctx := context.Background()

	testCases := []struct {
		groupBy string
		check   func(t *testing.T, rows any)
	}{
		{"", func(t *testing.T, rows any) { assert.Len(t, rows.([]report.DailyUsage), 4) }},
		{"DAY", func(t *testing.T, rows any) { assert.Len(t, rows.([]report.DailyUsage), 4) }},
		{"service", func(t *testing.T, rows any) { assert.Len(t, rows.([]report.ServiceTypeUsage), 3) }},
		{"Source", func(t *testing.T, rows any) { assert.Len(t, rows.([]report.SourceUsage), 4) }},
		{"destination", func(t *testing.T, rows any) { assert.Len(t, rows.([]report.DestinationUsage), 4) }},
	}

	for _, tc := range testCases {
		t.Run("groupBy="+tc.groupBy, func(t *testing.T) {
			rows, err := svc.Aggregate(ctx, tc.groupBy, ReportFilter{})
			require.NoError(t, err)
			tc.check(t, rows)
		})
	}
}

func TestAggregateUnsupportedGroupBy(t *testing.T) {
	svc := reportFixture(t)

	_, err := svc.Aggregate(context.Background(), "month", ReportFilter{})
	assert.ErrorIs(t, err, ErrUnsupportedGroupBy)
	assert.Equal(t, "Invalid groupBy parameter. Supported values: day, service, source, destination", UnsupportedGroupByMessage())
}

func TestAggregateEmptyStoreReturnsEmptyRows(t *testing.T) {
	svc := NewReportService(testLogger, NewMemoryRecordStore())

	for _, g := range SupportedGroupBy() {
		rows, err := svc.Aggregate(context.Background(), string(g), ReportFilter{})
		require.NoError(t, err)
		assert.NotNil(t, rows, string(g))
		assert.Empty(t, rows, string(g))
	}
}

func TestAggregateStoreFailure(t *testing.T) {
	svc := NewReportService(testLogger, failingStore{})

	_, err := svc.Aggregate(context.Background(), "source", ReportFilter{})
	assert.ErrorIs(t, err, errStoreDown)
}
