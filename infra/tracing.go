package infra

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceName = "cdr-backend"
)

// 全局 tracer 實例
var globalTracer trace.Tracer

// InitTracer 初始化全局 tracer
func InitTracer() {
	globalTracer = otel.Tracer(ServiceName)
}

// GetTracer 獲取全局 tracer
func GetTracer() trace.Tracer {
	if globalTracer == nil {
		InitTracer()
	}
	return globalTracer
}

// StartSpan 開始一個新的 span
func StartSpan(ctx context.Context, operationName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := GetTracer().Start(ctx, operationName)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// AddEvent 向 span 添加事件
func AddEvent(span trace.Span, eventName string, attrs ...attribute.KeyValue) {
	if span != nil {
		span.AddEvent(eventName, trace.WithAttributes(attrs...))
	}
}

// SetAttributes 設置 span 屬性
func SetAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}

// RecordError 記錄錯誤到 span
func RecordError(span trace.Span, err error, description string, attrs ...attribute.KeyValue) {
	if span != nil {
		span.RecordError(err)
		if description != "" {
			span.SetStatus(codes.Error, description)
		}
		if len(attrs) > 0 {
			span.SetAttributes(attrs...)
		}
	}
}

// MarkSuccess 標記 span 為成功
func MarkSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
		if len(attrs) > 0 {
			span.SetAttributes(attrs...)
		}
	}
}

// 常用的屬性建構函數
func AttrString(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

func AttrInt(key string, value int) attribute.KeyValue {
	return attribute.Int(key, value)
}

func AttrBool(key string, value bool) attribute.KeyValue {
	return attribute.Bool(key, value)
}

func AttrFloat64(key string, value float64) attribute.KeyValue {
	return attribute.Float64(key, value)
}

// 業務相關的屬性建構函數
func AttrCdrID(id int64) attribute.KeyValue {
	return attribute.Int64("cdr.id", id)
}

func AttrServiceType(serviceType string) attribute.KeyValue {
	return attribute.String("cdr.service_type", serviceType)
}

func AttrFileName(name string) attribute.KeyValue {
	return attribute.String("cdr.file_name", name)
}

func AttrGroupBy(groupBy string) attribute.KeyValue {
	return attribute.String("report.group_by", groupBy)
}

func AttrQueue(queue string) attribute.KeyValue {
	return attribute.String("messaging.destination", queue)
}

func AttrOperation(operation string) attribute.KeyValue {
	return attribute.String("service.operation", operation)
}

func AttrErrorType(errorType string) attribute.KeyValue {
	return attribute.String("error.type", errorType)
}

// Consumer 專用的 tracing helper 函數
func StartConsumerSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	baseAttrs := []attribute.KeyValue{
		AttrOperation(operation),
	}
	baseAttrs = append(baseAttrs, attrs...)
	return StartSpan(ctx, "cdr_consumer_"+operation, baseAttrs...)
}

// Cdr Controller 專用的 tracing helper 函數
func StartCdrControllerSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	baseAttrs := []attribute.KeyValue{
		AttrOperation(operation),
	}
	baseAttrs = append(baseAttrs, attrs...)
	return StartSpan(ctx, "cdr_controller_"+operation, baseAttrs...)
}

// 記錄 cdr controller 操作失敗
func RecordCdrControllerError(span trace.Span, err error, description string) {
	RecordError(span, err, description,
		AttrString("error", err.Error()),
		AttrBool("operation.success", false),
	)
	AddEvent(span, "operation_failed",
		AttrString("error", err.Error()),
	)
}
