package reportsink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-bricks-lazyload/config"
	"github.com/gaborage/go-bricks-lazyload/lazyload"
	"github.com/gaborage/go-bricks-lazyload/logger"
)

const (
	tracerName              = "go-bricks-lazyload/reportsink"
	messagingSystemRabbitMQ = "rabbitmq"
	operationPublish        = "publish"
)

// publisher is the part of *amqp.Channel the sink needs.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes each report as a persistent JSON message.
type AMQPSink struct {
	ch         publisher
	exchange   string
	routingKey string
	service    string
	now        func() time.Time
	close      func() error
}

var _ lazyload.Sink = (*AMQPSink)(nil)

var amqpDial = amqp.Dial

// NewAMQPSink publishes through ch. An empty exchange publishes to the
// default exchange, where routingKey names the queue.
func NewAMQPSink(ch publisher, exchange, routingKey, service string) *AMQPSink {
	return &AMQPSink{
		ch:         ch,
		exchange:   exchange,
		routingKey: routingKey,
		service:    service,
		now:        time.Now,
	}
}

// DialAMQP connects to cfg.URL and declares cfg.Exchange as a durable topic
// exchange. The returned sink owns the connection; call Close on shutdown.
func DialAMQP(cfg *config.AMQPSinkConfig, service string, log logger.Logger) (*AMQPSink, error) {
	conn, err := amqpDial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	if cfg.Exchange != "" {
		if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
		}
	}

	log.Info().
		Str("exchange", cfg.Exchange).
		Str("routing_key", cfg.RoutingKey).
		Msg("AMQP report sink connected")

	s := NewAMQPSink(ch, cfg.Exchange, cfg.RoutingKey, service)
	s.close = func() error {
		return errors.Join(ch.Close(), conn.Close())
	}
	return s, nil
}

// Publish sends report. The message id is the document id.
func (s *AMQPSink) Publish(ctx context.Context, report lazyload.Report) error {
	doc := NewDocument(s.service, report, s.now())
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	destination := s.exchange
	if destination == "" {
		destination = s.routingKey
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, destination+" "+operationPublish,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String(string(semconv.MessagingSystemKey), messagingSystemRabbitMQ),
			semconv.MessagingOperationName(operationPublish),
			semconv.MessagingDestinationName(destination),
			semconv.MessagingMessageBodySize(len(body)),
			attribute.String("messaging.rabbitmq.routing_key", s.routingKey),
		),
	)
	defer span.End()

	err = s.ch.PublishWithContext(ctx, s.exchange, s.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    doc.ID,
		Timestamp:    doc.FlushedAt,
		AppId:        s.service,
		Body:         body,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to publish report to %s: %w", destination, err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Close releases the channel and connection opened by DialAMQP.
func (s *AMQPSink) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}
