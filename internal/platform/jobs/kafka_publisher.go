package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/a2z-dev007/ecommerce-backend/internal/platform/observability"
	"github.com/a2z-dev007/ecommerce-backend/internal/services"
)

// MessageWriter is the subset of *kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig describes the brokers and topic order events are written to.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	Username string
	Password string
	// Logger receives the writer's internal errors, such as failed batch retries.
	Logger *zap.Logger
}

// NewKafkaWriter builds a hash-balanced writer so one order's events land on one partition.
func NewKafkaWriter(cfg KafkaConfig) (*kafka.Writer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka order publisher: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka order publisher: topic is required")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: false,
	}
	if cfg.Logger != nil {
		writer.ErrorLogger = observability.NewPrintfAdapter(cfg.Logger, zapcore.WarnLevel)
	}
	if cfg.Username != "" {
		writer.Transport = &kafka.Transport{
			SASL: plain.Mechanism{Username: cfg.Username, Password: cfg.Password},
		}
	}
	return writer, nil
}

// KafkaOrderEventPublisher writes order events keyed by order id.
type KafkaOrderEventPublisher struct {
	writer MessageWriter
}

// NewKafkaOrderEventPublisher wraps writer.
func NewKafkaOrderEventPublisher(writer MessageWriter) (*KafkaOrderEventPublisher, error) {
	if writer == nil {
		return nil, errors.New("kafka order publisher: writer is required")
	}
	return &KafkaOrderEventPublisher{writer: writer}, nil
}

// PublishOrderEvent implements services.OrderEventPublisher. Event attributes and the trace
// context travel as message headers.
func (p *KafkaOrderEventPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if p == nil || p.writer == nil {
		return errors.New("kafka order publisher: not initialised")
	}

	data, attrs, err := encodeOrderEvent(event)
	if err != nil {
		return err
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(attrs))

	headers := make([]kafka.Header, 0, len(attrs))
	for k, v := range attrs {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	msg := kafka.Message{
		Key:     []byte(event.OrderID),
		Value:   data,
		Headers: headers,
		Time:    event.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaOrderEventPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// PingKafka dials the first reachable broker and reads the controller to confirm the cluster answers.
func PingKafka(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return errors.New("kafka: no brokers configured")
	}
	var errs error
	for _, broker := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		if deadline, ok := ctx.Deadline(); ok {
			_ = conn.SetDeadline(deadline)
		}
		_, err = conn.Controller()
		_ = conn.Close()
		if err == nil {
			return nil
		}
		errs = errors.Join(errs, err)
	}
	return fmt.Errorf("kafka: brokers unreachable: %w", errs)
}
