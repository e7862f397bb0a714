package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ServiceType 定義服務類型
type ServiceType string

const (
	ServiceTypeCdr    ServiceType = "cdr"
	ServiceTypeReport ServiceType = "report"
	ServiceTypeLoader ServiceType = "loader"
)

// OperationType 定義操作類型
type OperationType string

const (
	OperationSave      OperationType = "save"
	OperationUpdate    OperationType = "update"
	OperationDelete    OperationType = "delete"
	OperationQuery     OperationType = "query"
	OperationIngest    OperationType = "ingest"
	OperationLoadFile  OperationType = "load_file"
	OperationAggregate OperationType = "aggregate"
)

// OperationStatus 定義操作狀態
type OperationStatus string

const (
	StatusSuccess OperationStatus = "success"
	StatusError   OperationStatus = "error"
	StatusSkipped OperationStatus = "skipped"
)

// OperationSource 定義操作來源
type OperationSource string

const (
	SourceAPI      OperationSource = "api"
	SourceConsumer OperationSource = "consumer"
	SourceLoader   OperationSource = "loader"
)

var (
	serviceOperationsTotal   *prometheus.CounterVec
	serviceOperationDuration *prometheus.HistogramVec
	ingestMessagesTotal      *prometheus.CounterVec
	ingestFallbacksTotal     *prometheus.CounterVec
	aggregationDuration      *prometheus.HistogramVec
	loaderRecordsTotal       *prometheus.CounterVec
)

// InitServiceMetrics 初始化 Service 層 metrics
func InitServiceMetrics(registry *prometheus.Registry) error {
	serviceOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "service_operations_total",
			Help: "Total number of service layer operations",
		},
		[]string{"service", "operation", "status", "source"},
	)

	serviceOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "service_operation_duration_seconds",
			Help:    "Duration of service layer operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "operation", "source"},
	)

	ingestMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdr_ingest_messages_total",
			Help: "Total number of inbound CDR messages by outcome",
		},
		[]string{"outcome"},
	)

	ingestFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdr_ingest_fallbacks_total",
			Help: "Total number of defaults applied while normalizing inbound CDR messages",
		},
		[]string{"field", "reason"},
	)

	aggregationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cdr_aggregation_duration_seconds",
			Help:    "Duration of CDR aggregation requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"group_by", "status"},
	)

	loaderRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdr_loader_records_total",
			Help: "Total number of file records handled by the loader",
		},
		[]string{"status"},
	)

	for _, c := range []prometheus.Collector{
		serviceOperationsTotal,
		serviceOperationDuration,
		ingestMessagesTotal,
		ingestFallbacksTotal,
		aggregationDuration,
		loaderRecordsTotal,
	} {
		if err := registry.Register(c); err != nil {
			return err
		}
	}

	return nil
}

// RecordServiceOperation 記錄 Service 層操作 metrics
func RecordServiceOperation(service ServiceType, operation OperationType, status OperationStatus, source OperationSource, duration time.Duration) {
	if serviceOperationsTotal != nil && serviceOperationDuration != nil {
		serviceOperationsTotal.WithLabelValues(string(service), string(operation), string(status), string(source)).Inc()
		serviceOperationDuration.WithLabelValues(string(service), string(operation), string(source)).Observe(duration.Seconds())
	}
}

// RecordCdrOperation 專門記錄 CDR 操作的便利函數
func RecordCdrOperation(operation OperationType, status OperationStatus, source OperationSource, duration time.Duration) {
	RecordServiceOperation(ServiceTypeCdr, operation, status, source, duration)
}

// RecordIngestMessage 記錄一則 inbound 訊息的處理結果 (saved, invalid, failed)
func RecordIngestMessage(outcome string) {
	if ingestMessagesTotal != nil {
		ingestMessagesTotal.WithLabelValues(outcome).Inc()
	}
}

// RecordFallback 記錄一次正規化預設值套用
func RecordFallback(field, reason string) {
	if ingestFallbacksTotal != nil {
		ingestFallbacksTotal.WithLabelValues(field, reason).Inc()
	}
}

// RecordAggregation 記錄彙總報表耗時
func RecordAggregation(groupBy string, status OperationStatus, duration time.Duration) {
	if aggregationDuration != nil {
		aggregationDuration.WithLabelValues(groupBy, string(status)).Observe(duration.Seconds())
	}
	RecordServiceOperation(ServiceTypeReport, OperationAggregate, status, SourceAPI, duration)
}

// RecordLoaderRecords 記錄 loader 處理的紀錄數
func RecordLoaderRecords(status OperationStatus, count int) {
	if loaderRecordsTotal != nil && count > 0 {
		loaderRecordsTotal.WithLabelValues(string(status)).Add(float64(count))
	}
}
