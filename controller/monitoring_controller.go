package controller

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cdr-backend/data-models/monitoring"
	"cdr-backend/middleware"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"
)

// Probe 基礎設施健康檢查項目；Ping 為 nil 表示未啟用
type Probe struct {
	Name     string // mongodb, redis, rabbitmq
	Category string // database, cache, queue
	Label    string // 訊息中顯示的名稱
	Ping     func(ctx context.Context) error
}

type MonitoringController struct {
	logger zerolog.Logger
	probes []Probe
}

func NewMonitoringController(logger zerolog.Logger, probes ...Probe) *MonitoringController {
	return &MonitoringController{
		logger: logger.With().Str("module", "monitoring_controller").Logger(),
		probes: probes,
	}
}

func (c *MonitoringController) RegisterRoutes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "健康檢查",
		Tags:        []string{"system"},
	}, func(ctx context.Context, input *struct{}) (*monitoring.HealthResponse, error) {
		resp := &monitoring.HealthResponse{}
		resp.Body.Status = "ok"
		resp.Body.Message = "CDR API服務運行正常"
		return resp, nil
	})

	for _, probe := range c.probes {
		huma.Register(api, huma.Operation{
			OperationID: probe.Name + "-monitoring",
			Method:      http.MethodGet,
			Path:        "/api/monitoring/" + probe.Name,
			Summary:     probe.Label + " 健康狀態監控",
			Tags:        []string{"monitoring"},
		}, func(ctx context.Context, input *struct{}) (*monitoring.ComponentHealthResponse, error) {
			return &monitoring.ComponentHealthResponse{Body: c.check(ctx, probe)}, nil
		})
	}
}

// RefreshInfrastructureHealth 檢查所有項目並更新 Prometheus 健康指標
func (c *MonitoringController) RefreshInfrastructureHealth(ctx context.Context) {
	for _, probe := range c.probes {
		h := c.check(ctx, probe)
		middleware.UpdateInfrastructureHealth(probe.Category, probe.Name, h.Status == "healthy", h.Latency)
		if h.Status != "healthy" {
			c.logger.Warn().Str("component", probe.Name).Str("message", h.Message).Msg("基礎設施健康檢查失敗")
		}
	}
}

func (c *MonitoringController) check(ctx context.Context, probe Probe) monitoring.ComponentHealth {
	start := time.Now()
	var err error
	if probe.Ping != nil {
		err = probe.Ping(ctx)
	} else {
		err = fmt.Errorf("%s 服務未啟用", probe.Label)
	}
	latency := float64(time.Since(start).Nanoseconds()) / 1e6

	if err != nil {
		return monitoring.ComponentHealth{
			Status:  "unhealthy",
			Latency: latency,
			Message: fmt.Sprintf("%s 連接失敗: %v", probe.Label, err),
		}
	}
	return monitoring.ComponentHealth{
		Status:  "healthy",
		Latency: latency,
		Message: probe.Label + " 連接正常",
	}
}
