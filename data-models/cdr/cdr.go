package cdr

import (
	"cdr-backend/model"
	"cdr-backend/service"
)

type CdrIDInput struct {
	ID int64 `path:"id" example:"1" doc:"CDR ID"`
}

type CreateCdrInput struct {
	Body model.Cdr `json:"cdr"`
}

type UpdateCdrInput struct {
	Body model.Cdr `json:"cdr" doc:"完整紀錄，必須包含已存在的 id"`
}

type CdrResponse struct {
	Body *model.Cdr `json:"cdr"`
}

type CdrsResponse struct {
	Body []*model.Cdr `json:"cdrs"`
}

type GetCdrsBySourceInput struct {
	Source string `query:"source" required:"true" doc:"來源號碼"`
}

type GetCdrsByServiceTypeInput struct {
	ServiceType string `query:"serviceType" required:"true" doc:"服務類型，不分大小寫 (voice/sms/data)"`
}

type GetCdrsByUsageRangeInput struct {
	MinUsage float64 `query:"minUsage" required:"true" doc:"最小用量 (含)"`
	MaxUsage float64 `query:"maxUsage" required:"true" doc:"最大用量 (含)"`
}

type GetAggregatedCdrsInput struct {
	GroupBy     string `query:"groupBy" default:"day" doc:"彙總維度：day, service, source, destination (不分大小寫)"`
	ServiceType string `query:"serviceType" doc:"服務類型過濾，僅適用於 groupBy=day"`
	StartDate   string `query:"startDate" doc:"開始日期 (YYYY-MM-DD，含)"`
	EndDate     string `query:"endDate" doc:"結束日期 (YYYY-MM-DD，含)"`
}

// AggregatedCdrsResponse 的 Body 依 groupBy 為 DailyUsage、ServiceTypeUsage、SourceUsage 或 DestinationUsage 陣列
type AggregatedCdrsResponse struct {
	Body any `json:"rows"`
}

// HealthResponse 純文字存活訊息
type HealthResponse struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type IngestionStatsResponse struct {
	Body *service.IngestionStats `json:"stats"`
}
