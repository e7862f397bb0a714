package infra

import (
	"context"
	"errors"
	"fmt"

	"github.com/streadway/amqp"
)

// ErrRabbitMQClosed 連線已關閉
var ErrRabbitMQClosed = errors.New("rabbitmq connection closed")

type RabbitMQConfig struct {
	URL      string
	Queues   []string
	Prefetch int
}

type RabbitMQ struct {
	Connection *amqp.Connection
	Channel    *amqp.Channel
}

func NewRabbitMQ(config RabbitMQConfig) (*RabbitMQ, error) {
	logger := GetLogger("rabbitmq")

	conn, err := amqp.Dial(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	if config.Prefetch > 0 {
		if err := ch.Qos(config.Prefetch, 0, false); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to set prefetch %d: %w", config.Prefetch, err)
		}
	}

	r := &RabbitMQ{
		Connection: conn,
		Channel:    ch,
	}

	// 自動宣告所有隊列
	for _, queueName := range config.Queues {
		if _, err := r.DeclareQueue(queueName); err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
		}
	}

	logger.Info().Strs("queues", config.Queues).Msg("Connected to RabbitMQ!")
	return r, nil
}

func (r *RabbitMQ) Close() error {
	if r.Channel != nil {
		r.Channel.Close()
	}
	if r.Connection != nil {
		return r.Connection.Close()
	}
	return nil
}

// Ping 檢查連線是否仍然存活
func (r *RabbitMQ) Ping() error {
	if r == nil || r.Connection == nil {
		return ErrRabbitMQClosed
	}
	if r.Connection.IsClosed() {
		return ErrRabbitMQClosed
	}
	return nil
}

func (r *RabbitMQ) DeclareQueue(name string) (amqp.Queue, error) {
	return r.Channel.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
}

// Consume 以手動 ack 模式訂閱隊列；同一隊列上的多個 consumer 分攤訊息
func (r *RabbitMQ) Consume(queueName, consumerTag string) (<-chan amqp.Delivery, error) {
	return r.Channel.Consume(
		queueName,   // queue
		consumerTag, // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
}

// Cancel 停止指定 consumer 的投遞
func (r *RabbitMQ) Cancel(consumerTag string) error {
	return r.Channel.Cancel(consumerTag, false)
}

func (r *RabbitMQ) PublishMessage(queueName string, body []byte) error {
	return r.Publish(context.Background(), queueName, "", body)
}

// Publish 發送持久化 JSON 訊息，key 寫入 CorrelationId
func (r *RabbitMQ) Publish(ctx context.Context, queueName, key string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.Channel.Publish(
		"",        // exchange
		queueName, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			CorrelationId: key,
			Body:          body,
		})
}
