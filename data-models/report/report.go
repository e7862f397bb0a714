package report

// DailyUsage 依日期與服務類型彙總的用量
type DailyUsage struct {
	Date             string  `json:"date" doc:"日期 (YYYY-MM-DD)" example:"2024-01-01"`
	TotalUsage       float64 `json:"totalUsage" doc:"依服務類型規則進位後的總用量" example:"5.56"`
	InteractionCount int64   `json:"interactionCount" doc:"紀錄筆數"`
	ServiceType      string  `json:"serviceType" doc:"服務類型" example:"VOICE"`
	UsageUnit        string  `json:"usageUnit" doc:"用量單位" example:"minutes"`
}

// ServiceTypeUsage 依服務類型彙總的用量
type ServiceTypeUsage struct {
	ServiceType string  `json:"serviceType" doc:"服務類型"`
	TotalUsage  float64 `json:"totalUsage" doc:"總用量"`
	CallCount   int64   `json:"callCount" doc:"紀錄筆數"`
}

// SourceUsage 依來源與服務類型彙總的用量
type SourceUsage struct {
	Source      string  `json:"source" doc:"來源號碼"`
	TotalUsage  float64 `json:"totalUsage" doc:"總用量"`
	CallCount   int64   `json:"callCount" doc:"紀錄筆數"`
	ServiceType string  `json:"serviceType" doc:"服務類型"`
}

// DestinationUsage 依目的地與服務類型彙總的用量
type DestinationUsage struct {
	Destination string  `json:"destination" doc:"目的號碼或URL"`
	TotalUsage  float64 `json:"totalUsage" doc:"總用量"`
	CallCount   int64   `json:"callCount" doc:"紀錄筆數"`
	ServiceType string  `json:"serviceType" doc:"服務類型"`
}
