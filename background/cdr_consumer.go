package background

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"cdr-backend/infra"
	"cdr-backend/metrics"
	"cdr-backend/model"
	"cdr-backend/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

// DeliverySource 提供隊列訊息的來源，正式環境為 *infra.RabbitMQ
type DeliverySource interface {
	Consume(queueName, consumerTag string) (<-chan amqp.Delivery, error)
	Cancel(consumerTag string) error
}

// CdrConsumer reads inbound CDR messages one at a time, normalizes them and saves them. A message
// that cannot be decoded or saved is logged and dropped; the loop keeps going.
type CdrConsumer struct {
	logger      zerolog.Logger
	source      DeliverySource
	store       service.RecordStore
	recorder    service.IngestionRecorder
	queue       string
	consumerTag string
	now         func() time.Time
}

// NewCdrConsumer group 為 consumer group 名稱，同組實例共享同一隊列分攤訊息
func NewCdrConsumer(logger zerolog.Logger, source DeliverySource, store service.RecordStore, recorder service.IngestionRecorder, queue, group string) *CdrConsumer {
	tag := fmt.Sprintf("%s-%s-%s", group, infra.Hostname(), uuid.NewString())
	return &CdrConsumer{
		logger:      logger.With().Str("module", "cdr_consumer").Str("queue", queue).Str("consumer_tag", tag).Logger(),
		source:      source,
		store:       store,
		recorder:    recorder,
		queue:       queue,
		consumerTag: tag,
		now:         time.Now,
	}
}

// ConsumerTag 回傳此實例在 broker 上的識別
func (c *CdrConsumer) ConsumerTag() string {
	return c.consumerTag
}

// Start 訂閱隊列並阻塞直到 ctx 結束或通道關閉
func (c *CdrConsumer) Start(ctx context.Context) error {
	msgs, err := c.source.Consume(c.queue, c.consumerTag)
	if err != nil {
		c.logger.Error().Err(err).Msg("CDR consumer 無法消費隊列 (Failed to consume queue)")
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.logger.Info().Msg("CDR consumer 已啟動，等待訊息... (Cdr consumer started)")
	c.Run(ctx, msgs)

	if err := c.source.Cancel(c.consumerTag); err != nil {
		c.logger.Warn().Err(err).Msg("取消 consumer 失敗 (Failed to cancel consumer)")
	}
	return nil
}

// Run 依序處理訊息，每則處理完後 ack
func (c *CdrConsumer) Run(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("CDR consumer 已停止 (Cdr consumer stopped)")
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn().Msg("隊列通道已關閉 (Delivery channel closed)")
				return
			}
			c.handleDelivery(ctx, msg)
		}
	}
}

// handleDelivery 不論處理結果如何都會 ack
func (c *CdrConsumer) handleDelivery(ctx context.Context, msg amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Uint64("delivery_tag", msg.DeliveryTag).Msg("CDR 訊息處理發生 panic (Panic while handling cdr message)")
		}
		if err := msg.Ack(false); err != nil {
			c.logger.Error().Err(err).Uint64("delivery_tag", msg.DeliveryTag).Msg("訊息 ack 失敗 (Failed to ack message)")
		}
	}()
	c.HandleMessage(ctx, msg.Body)
}

// HandleMessage 解析、正規化並儲存一則訊息，回傳處理結果；處理中的 panic 視為 IngestFailed
func (c *CdrConsumer) HandleMessage(ctx context.Context, body []byte) (outcome service.IngestOutcome) {
	start := time.Now()
	ctx, span := infra.StartConsumerSpan(ctx, "handle_message", infra.AttrQueue(c.queue))
	defer span.End()

	finished := false
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err := fmt.Errorf("panic: %v", r)
		c.logger.Error().Err(err).Str("payload", string(body)).Str("stack", string(debug.Stack())).Msg("CDR 處理發生 panic (Recovered panic while handling cdr message)")
		infra.RecordError(span, err, "panic recovered", infra.AttrErrorType("panic"))
		outcome = service.IngestFailed
		if !finished {
			c.finish(ctx, service.IngestFailed, nil, start)
		}
	}()

	var msg model.InboundMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		c.logger.Error().Err(err).Str("payload", string(body)).Msg("CDR 訊息解析失敗 (Failed to decode cdr message)")
		infra.RecordError(span, err, "decode failed", infra.AttrErrorType("decode"))
		finished = true
		c.finish(ctx, service.IngestInvalid, nil, start)
		return service.IngestInvalid
	}

	cdr, events := service.NormalizeInbound(msg, model.NewLocalDateTime(c.now()))
	infra.SetAttributes(span, infra.AttrFloat64("cdr.usage", cdr.Usage), infra.AttrInt("cdr.fallback_count", len(events)))
	for _, e := range events {
		c.logger.Warn().
			Str("field", e.Field).
			Str("reason", string(e.Reason)).
			Str("raw_value", e.RawValue).
			Str("applied", e.Applied).
			Str("file_name", msg.FileName).
			Msg("CDR 欄位套用預設值 (Applied fallback to cdr field)")
		metrics.RecordFallback(e.Field, string(e.Reason))
		infra.AddEvent(span, "fallback_applied", infra.AttrString("field", e.Field), infra.AttrString("reason", string(e.Reason)))
	}

	saved, err := c.store.Save(ctx, cdr)
	if err != nil {
		c.logger.Error().Err(err).Str("payload", string(body)).Msg("CDR 儲存失敗 (Failed to save cdr)")
		infra.RecordError(span, err, "save failed", infra.AttrErrorType("store"))
		finished = true
		c.finish(ctx, service.IngestFailed, events, start)
		return service.IngestFailed
	}

	c.logger.Debug().Int64("cdr_id", saved.ID).Str("source", saved.Source).Msg("CDR 已儲存 (Cdr saved)")
	infra.MarkSuccess(span, infra.AttrCdrID(saved.ID), infra.AttrServiceType(saved.ServiceType.String()))
	finished = true
	c.finish(ctx, service.IngestSaved, events, start)
	return service.IngestSaved
}

func (c *CdrConsumer) finish(ctx context.Context, outcome service.IngestOutcome, events []service.FallbackEvent, start time.Time) {
	status := metrics.StatusSuccess
	if outcome != service.IngestSaved {
		status = metrics.StatusError
	}
	metrics.RecordIngestMessage(string(outcome))
	metrics.RecordCdrOperation(metrics.OperationIngest, status, metrics.SourceConsumer, time.Since(start))
	if c.recorder != nil {
		c.recorder.RecordIngest(ctx, outcome, events)
	}
}
