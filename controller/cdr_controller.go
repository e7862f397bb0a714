package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cdr-backend/auth"
	"cdr-backend/data-models/cdr"
	"cdr-backend/infra"
	"cdr-backend/middleware"
	"cdr-backend/service"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"
)

// HealthMessage /api/cdrs/health 回應內容
const HealthMessage = "Cdr Service is running"

type CdrController struct {
	logger         zerolog.Logger
	cdrService     *service.CdrService
	reportService  *service.ReportService
	statsService   *service.IngestionStatsService
	authMiddleware *middleware.TokenAuthMiddleware
}

// NewCdrController authMiddleware 為 nil 時不驗證 token
func NewCdrController(logger zerolog.Logger, cdrService *service.CdrService, reportService *service.ReportService, statsService *service.IngestionStatsService, authMiddleware *middleware.TokenAuthMiddleware) *CdrController {
	return &CdrController{
		logger:         logger.With().Str("module", "cdr_controller").Logger(),
		cdrService:     cdrService,
		reportService:  reportService,
		statsService:   statsService,
		authMiddleware: authMiddleware,
	}
}

// secured 啟用驗證時為 operation 加上 token 中間件
func (c *CdrController) secured(op huma.Operation) huma.Operation {
	if c.authMiddleware != nil {
		op.Middlewares = huma.Middlewares{c.authMiddleware.Auth()}
		op.Security = []map[string][]string{
			{"bearerAuth": {}},
		}
	}
	return op
}

func (c *CdrController) RegisterRoutes(api huma.API) {
	// 獲取所有 CDR
	huma.Register(api, c.secured(huma.Operation{
		OperationID: "get-cdrs",
		Method:      http.MethodGet,
		Path:        "/api/cdrs",
		Summary:     "獲取所有 CDR",
		Tags:        []string{"cdrs"},
	}), func(ctx context.Context, input *struct{}) (*cdr.CdrsResponse, error) {
		cdrs, err := c.cdrService.GetAllCdrs(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("獲取 CDR 列表失敗", err)
		}
		return &cdr.CdrsResponse{Body: cdrs}, nil
	})

	// 服務存活檢查
	huma.Register(api, huma.Operation{
		OperationID: "cdr-health",
		Method:      http.MethodGet,
		Path:        "/api/cdrs/health",
		Summary:     "CDR 服務存活檢查",
		Tags:        []string{"cdrs"},
	}, func(ctx context.Context, input *struct{}) (*cdr.HealthResponse, error) {
		return &cdr.HealthResponse{ContentType: "text/plain", Body: []byte(HealthMessage)}, nil
	})

	// 依來源查詢
	huma.Register(api, c.secured(huma.Operation{
		OperationID: "get-cdrs-by-source",
		Method:      http.MethodGet,
		Path:        "/api/cdrs/source",
		Summary:     "依來源號碼查詢 CDR",
		Tags:        []string{"cdrs"},
	}), func(ctx context.Context, input *cdr.GetCdrsBySourceInput) (*cdr.CdrsResponse, error) {
		cdrs, err := c.cdrService.GetCdrsBySource(ctx, input.Source)
		if err != nil {
			return nil, huma.Error500InternalServerError("依來源查詢 CDR 失敗", err)
		}
		if len(cdrs) == 0 {
			return nil, huma.Error404NotFound(fmt.Sprintf("No CDRs found for source: %s", input.Source))
		}
		return &cdr.CdrsResponse{Body: cdrs}, nil
	})

	// 依服務類型查詢
	huma.Register(api, c.secured(huma.Operation{
		OperationID: "get-cdrs-by-service-type",
		Method:      http.MethodGet,
		Path:        "/api/cdrs/service-type",
		Summary:     "依服務類型查詢 CDR",
		Tags:        []string{"cdrs"},
	}), func(ctx context.Context, input *cdr.GetCdrsByServiceTypeInput) (*cdr.CdrsResponse, error) {
		cdrs, err := c.cdrService.GetCdrsByServiceType(ctx, input.ServiceType)
		if err != nil {
			return nil, huma.Error500InternalServerError("依服務類型查詢 CDR 失敗", err)
		}
		if len(cdrs) == 0 {
			return nil, huma.Error404NotFound(fmt.Sprintf("No CDRs found for service type: %s", input.ServiceType))
		}
		return &cdr.CdrsResponse{Body: cdrs}, nil
	})

	// 依用量區間查詢
	huma.Register(api, c.secured(huma.Operation{
		OperationID: "get-cdrs-by-usage-range",
		Method:      http.MethodGet,
		Path:        "/api/cdrs/usage-range",
		Summary:     "依用量區間查詢 CDR",
		Tags:        []string{"cdrs"},
	}), func(ctx context.Context, input *cdr.GetCdrsByUsageRangeInput) (*cdr.CdrsResponse, error) {
		cdrs, err := c.cdrService.GetCdrsByUsageRange(ctx, input.MinUsage, input.MaxUsage)
		if err != nil {
			return nil, huma.Error500InternalServerError("依用量查詢 CDR 失敗", err)
		}
		if len(cdrs) == 0 {
			return nil, huma.Error404NotFound(fmt.Sprintf("No CDRs found with usage between %g and %g", input.MinUsage, input.MaxUsage))
		}
		return &cdr.CdrsResponse{Body: cdrs}, nil
	})

	// 彙總報表
	huma.Register(api, c.secured(huma.Operation{
		OperationID: "get-aggregated-cdrs",
		Method:      http.MethodGet,
		Path:        "/api/cdrs/aggregated",
		Summary:     "CDR 用量彙總報表",
		Description: "groupBy 為 day 時回傳 DailyUsage，service 回傳 ServiceTypeUsage，source/destination 回傳對應的用量排行",
		Tags:        []string{"reports"},
	}), func(ctx context.Context, input *cdr.GetAggregatedCdrsInput) (*cdr.AggregatedCdrsResponse, error) {
		ctx, span := infra.StartCdrControllerSpan(ctx, "aggregate", infra.AttrGroupBy(input.GroupBy))
		defer span.End()

		rows, err := c.reportService.Aggregate(ctx, input.GroupBy, service.ReportFilter{
			ServiceType: input.ServiceType,
			StartDate:   input.StartDate,
			EndDate:     input.EndDate,
		})
		if err != nil {
			infra.RecordCdrControllerError(span, err, "aggregation failed")
			if errors.Is(err, service.ErrUnsupportedGroupBy) {
				return nil, huma.Error400BadRequest(service.UnsupportedGroupByMessage())
			}
			return nil, huma.Error500InternalServerError("Error processing aggregation request: " + err.Error())
		}

		infra.MarkSuccess(span)
		return &cdr.AggregatedCdrsResponse{Body: rows}, nil
	})

	// 攝取統計
	huma.Register(api, c.secured(huma.Operation{
		OperationID: "get-ingestion-stats",
		Method:      http.MethodGet,
		Path:        "/api/cdrs/ingestion/stats",
		Summary:     "CDR 訊息攝取統計",
		Tags:        []string{"ingestion"},
	}), func(ctx context.Context, input *struct{}) (*cdr.IngestionStatsResponse, error) {
		stats, err := c.statsService.Stats(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("獲取攝取統計失敗", err)
		}
		return &cdr.IngestionStatsResponse{Body: stats}, nil
	})

	// 依 ID 查詢
	huma.Register(api, c.secured(huma.Operation{
		OperationID: "get-cdr",
		Method:      http.MethodGet,
		Path:        "/api/cdrs/{id}",
		Summary:     "依 ID 獲取 CDR",
		Tags:        []string{"cdrs"},
	}), func(ctx context.Context, input *cdr.CdrIDInput) (*cdr.CdrResponse, error) {
		record, err := c.cdrService.GetCdrByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, service.ErrRecordNotFound) {
				return nil, huma.Error404NotFound(fmt.Sprintf("CDR not found: %d", input.ID))
			}
			return nil, huma.Error500InternalServerError("獲取 CDR 失敗", err)
		}
		return &cdr.CdrResponse{Body: record}, nil
	})

	// 新增 CDR
	huma.Register(api, c.secured(huma.Operation{
		OperationID:   "create-cdr",
		Method:        http.MethodPost,
		Path:          "/api/cdrs",
		Summary:       "新增 CDR",
		Tags:          []string{"cdrs"},
		DefaultStatus: http.StatusOK,
	}), func(ctx context.Context, input *cdr.CreateCdrInput) (*cdr.CdrResponse, error) {
		saved, err := c.cdrService.SaveCdr(ctx, &input.Body)
		if err != nil {
			return nil, huma.Error500InternalServerError("新增 CDR 失敗", err)
		}
		c.logWrite(ctx, "create", saved.ID)
		return &cdr.CdrResponse{Body: saved}, nil
	})

	// 更新 CDR
	huma.Register(api, c.secured(huma.Operation{
		OperationID:   "update-cdr",
		Method:        http.MethodPost,
		Path:          "/api/cdrs/update",
		Summary:       "以完整紀錄更新 CDR",
		Tags:          []string{"cdrs"},
		DefaultStatus: http.StatusOK,
	}), func(ctx context.Context, input *cdr.UpdateCdrInput) (*cdr.CdrResponse, error) {
		updated, err := c.cdrService.UpdateCdr(ctx, &input.Body)
		if err != nil {
			if errors.Is(err, service.ErrRecordNotFound) {
				return nil, huma.Error400BadRequest(fmt.Sprintf("CDR not found for update: %d", input.Body.ID))
			}
			return nil, huma.Error500InternalServerError("更新 CDR 失敗", err)
		}
		c.logWrite(ctx, "update", updated.ID)
		return &cdr.CdrResponse{Body: updated}, nil
	})

	// 刪除 CDR
	huma.Register(api, c.secured(huma.Operation{
		OperationID:   "delete-cdr",
		Method:        http.MethodDelete,
		Path:          "/api/cdrs/{id}",
		Summary:       "刪除 CDR",
		Tags:          []string{"cdrs"},
		DefaultStatus: http.StatusNoContent,
	}), func(ctx context.Context, input *cdr.CdrIDInput) (*struct{}, error) {
		if err := c.cdrService.DeleteCdr(ctx, input.ID); err != nil {
			return nil, huma.Error500InternalServerError("刪除 CDR 失敗", err)
		}
		c.logWrite(ctx, "delete", input.ID)
		return nil, nil
	})
}

// logWrite 記錄寫入操作與呼叫者；未啟用驗證時呼叫者為 anonymous
func (c *CdrController) logWrite(ctx context.Context, action string, id int64) {
	principal := "anonymous"
	if p, err := auth.GetPrincipalFromContext(ctx); err == nil {
		principal = p.Subject
	}
	c.logger.Info().Str("action", action).Int64("cdr_id", id).Str("principal", principal).Msg("CDR 寫入操作 (Cdr write)")
}
