package monitoring

type ComponentHealth struct {
	Status  string  `json:"status" example:"healthy"`
	Latency float64 `json:"latency" example:"1.23" doc:"毫秒"`
	Message string  `json:"message" example:"MongoDB 連接正常"`
}

type ComponentHealthResponse struct {
	Body ComponentHealth
}

type HealthResponse struct {
	Body struct {
		Status  string `json:"status" example:"ok"`
		Message string `json:"message" example:"服務運行正常"`
	}
}
