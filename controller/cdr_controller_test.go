package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"cdr-backend/auth"
	"cdr-backend/data-models/report"
	"cdr-backend/middleware"
	"cdr-backend/model"
	"cdr-backend/service"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger zerolog.Logger

func TestMain(m *testing.M) {
	testLogger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger().Level(zerolog.WarnLevel)
	os.Exit(m.Run())
}

func newTestCdrAPI(t *testing.T, authMiddleware *middleware.TokenAuthMiddleware, cdrs ...*model.Cdr) humatest.TestAPI {
	t.Helper()
	store := service.NewMemoryRecordStore()
	for _, c := range cdrs {
		_, err := store.Save(context.Background(), c)
		require.NoError(t, err)
	}

	_, api := humatest.New(t)
	ctrl := NewCdrController(testLogger,
		service.NewCdrService(testLogger, store),
		service.NewReportService(testLogger, store),
		service.NewIngestionStatsService(testLogger, nil),
		authMiddleware,
	)
	ctrl.RegisterRoutes(api)
	return api
}

func testCdr(t *testing.T, source, destination, startTime string, st model.ServiceType, usage float64) *model.Cdr {
	t.Helper()
	dt, err := model.ParseLocalDateTime(startTime)
	require.NoError(t, err)
	return &model.Cdr{Source: source, Destination: destination, StartTime: &dt, ServiceType: st, Usage: usage}
}

func decodeCdrs(t *testing.T, body []byte) []model.Cdr {
	t.Helper()
	var cdrs []model.Cdr
	require.NoError(t, json.Unmarshal(body, &cdrs))
	return cdrs
}

func TestCdrHealth(t *testing.T) {
	api := newTestCdrAPI(t, nil)

	resp := api.Get("/api/cdrs/health")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, HealthMessage, resp.Body.String())
	assert.Contains(t, resp.Header().Get("Content-Type"), "text/plain")
}

func TestCdrCreateGetDelete(t *testing.T) {
	api := newTestCdrAPI(t, nil)

	resp := api.Post("/api/cdrs", map[string]any{
		"id":          55,
		"source":      "886912345678",
		"destination": "886987654321",
		"startTime":   "2024-01-01T10:00:00",
		"serviceType": "VOICE",
		"usage":       12.5,
		"fileName":    "manual",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var created model.Cdr
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "2024-01-01T10:00:00", created.StartTime.String())

	resp = api.Get("/api/cdrs/1")
	require.Equal(t, http.StatusOK, resp.Code)
	var got model.Cdr
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, "886912345678", got.Source)
	assert.Equal(t, 12.5, got.Usage)

	resp = api.Delete("/api/cdrs/1")
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = api.Get("/api/cdrs/1")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = api.Delete("/api/cdrs/1")
	assert.Equal(t, http.StatusNoContent, resp.Code, "刪除不存在的紀錄仍回傳 204")
}

func TestCdrListAll(t *testing.T) {
	api := newTestCdrAPI(t, nil,
		testCdr(t, "111", "222", "2024-01-01T10:00:00", model.ServiceTypeVoice, 1),
		testCdr(t, "333", "444", "2024-01-01T11:00:00", model.ServiceTypeSMS, 1),
	)

	resp := api.Get("/api/cdrs")
	require.Equal(t, http.StatusOK, resp.Code)
	cdrs := decodeCdrs(t, resp.Body.Bytes())
	require.Len(t, cdrs, 2)
	assert.Equal(t, int64(1), cdrs[0].ID)
	assert.Equal(t, int64(2), cdrs[1].ID)
}

func TestCdrUpdate(t *testing.T) {
	api := newTestCdrAPI(t, nil, testCdr(t, "111", "222", "2024-01-01T10:00:00", model.ServiceTypeVoice, 1))

	resp := api.Post("/api/cdrs/update", map[string]any{
		"id":          1,
		"source":      "111",
		"destination": "999",
		"startTime":   "2024-01-01T10:00:00",
		"serviceType": "VOICE",
		"usage":       3,
		"fileName":    "",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = api.Get("/api/cdrs/1")
	var got model.Cdr
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, "999", got.Destination)
	assert.Equal(t, 3.0, got.Usage)

	resp = api.Post("/api/cdrs/update", map[string]any{"id": 77, "source": "111"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = api.Post("/api/cdrs/update", map[string]any{"source": "111"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCdrLookups(t *testing.T) {
	api := newTestCdrAPI(t, nil,
		testCdr(t, "111", "222", "2024-01-01T10:00:00", model.ServiceTypeVoice, 10),
		testCdr(t, "111", "333", "2024-01-01T11:00:00", model.ServiceTypeSMS, 1),
		testCdr(t, "444", "http://example.com", "2024-01-02T09:00:00", model.ServiceTypeData, 20),
	)

	testCases := []struct {
		name     string
		path     string
		wantCode int
		wantLen  int
	}{
		{"來源相符", "/api/cdrs/source?source=111", http.StatusOK, 2},
		{"來源不存在", "/api/cdrs/source?source=000", http.StatusNotFound, 0},
		{"服務類型小寫", "/api/cdrs/service-type?serviceType=data", http.StatusOK, 1},
		{"未知服務類型", "/api/cdrs/service-type?serviceType=fax", http.StatusNotFound, 0},
		{"用量區間含邊界", "/api/cdrs/usage-range?minUsage=1&maxUsage=10", http.StatusOK, 2},
		{"用量區間無資料", "/api/cdrs/usage-range?minUsage=100&maxUsage=200", http.StatusNotFound, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := api.Get(tc.path)
			require.Equal(t, tc.wantCode, resp.Code, resp.Body.String())
			if tc.wantCode == http.StatusOK {
				assert.Len(t, decodeCdrs(t, resp.Body.Bytes()), tc.wantLen)
			}
		})
	}
}

func TestCdrAggregated(t *testing.T) {
	api := newTestCdrAPI(t, nil,
		testCdr(t, "111", "222", "2024-01-01T10:00:00", model.ServiceTypeVoice, 2.222),
		testCdr(t, "111", "333", "2024-01-01T11:00:00", model.ServiceTypeVoice, 3.333),
		testCdr(t, "444", "http://example.com", "2024-01-02T09:00:00", model.ServiceTypeData, 4.445),
	)

	resp := api.Get("/api/cdrs/aggregated")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var days []report.DailyUsage
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &days))
	assert.Equal(t, []report.DailyUsage{
		{Date: "2024-01-01", TotalUsage: 5.56, InteractionCount: 2, ServiceType: "VOICE", UsageUnit: "minutes"},
		{Date: "2024-01-02", TotalUsage: 4.45, InteractionCount: 1, ServiceType: "DATA", UsageUnit: "MB"},
	}, days)

	resp = api.Get("/api/cdrs/aggregated?groupBy=SOURCE")
	require.Equal(t, http.StatusOK, resp.Code)
	var sources []report.SourceUsage
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &sources))
	require.Len(t, sources, 2)
	assert.Equal(t, "111", sources[0].Source)

	resp = api.Get("/api/cdrs/aggregated?groupBy=day&startDate=2030-01-01")
	require.Equal(t, http.StatusOK, resp.Code)
	var empty []report.DailyUsage
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &empty))
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestCdrAggregatedInvalidGroupBy(t *testing.T) {
	api := newTestCdrAPI(t, nil)

	resp := api.Get("/api/cdrs/aggregated?groupBy=month")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "Invalid groupBy parameter. Supported values: day, service, source, destination")
}

func TestCdrIngestionStats(t *testing.T) {
	api := newTestCdrAPI(t, nil)

	resp := api.Get("/api/cdrs/ingestion/stats")
	require.Equal(t, http.StatusOK, resp.Code)

	var stats service.IngestionStats
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &stats))
	assert.Equal(t, int64(0), stats.Received)
	assert.False(t, stats.Shared)
}

func TestCdrRoutesRequireTokenWhenAuthEnabled(t *testing.T) {
	validator := auth.NewIssuerValidator("secret", []string{"billing"})
	api := newTestCdrAPI(t, middleware.NewTokenAuthMiddleware(testLogger, validator))

	resp := api.Get("/api/cdrs")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = api.Get("/api/cdrs", "Authorization: Token abc")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "billing",
		"sub": "report-job",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	resp = api.Get("/api/cdrs", "Authorization: Bearer "+signed)
	assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = api.Get("/api/cdrs/health")
	assert.Equal(t, http.StatusOK, resp.Code, "存活檢查不需要 token")
}

func TestCdrWritesLogPrincipal(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)
	store := service.NewMemoryRecordStore()

	validator := auth.NewIssuerValidator("secret", []string{"billing"})
	_, api := humatest.New(t)
	NewCdrController(logger,
		service.NewCdrService(testLogger, store),
		service.NewReportService(testLogger, store),
		service.NewIngestionStatsService(testLogger, nil),
		middleware.NewTokenAuthMiddleware(testLogger, validator),
	).RegisterRoutes(api)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "billing",
		"sub": "ops-user",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	resp := api.Post("/api/cdrs", "Authorization: Bearer "+signed, map[string]any{
		"source":      "886912345678",
		"destination": "886987654321",
		"startTime":   "2024-01-01T10:00:00",
		"serviceType": "VOICE",
		"usage":       1,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = api.Delete("/api/cdrs/1", "Authorization: Bearer "+signed)
	require.Equal(t, http.StatusNoContent, resp.Code)

	out := buf.String()
	assert.Contains(t, out, `"action":"create"`)
	assert.Contains(t, out, `"action":"delete"`)
	assert.Contains(t, out, `"principal":"ops-user"`)
	assert.NotContains(t, out, `"principal":"anonymous"`)
}
