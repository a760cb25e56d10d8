package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Config holds Kafka configuration
type Config struct {
	Brokers []string
	Topic   string
}

// ParseConfig parses a comma-separated broker string
func ParseConfig(brokers string, topic string) Config {
	brokerList := []string{}
	for _, broker := range strings.Split(brokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokerList = append(brokerList, broker)
		}
	}

	return Config{
		Brokers: brokerList,
		Topic:   topic,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes stage log lifecycle events.
type Producer struct {
	writer messageWriter
	logger ectologger.Logger
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg Config, logger ectologger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		// Allow Kafka to auto-create the topic in dev environments when it doesn't exist yet.
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishStageLogEvent publishes evt keyed by its stage log id so that every
// event of one log lands on the same partition in order.
func (p *Producer) PublishStageLogEvent(ctx context.Context, evt models.StageLogEvent) error {
	ctx, span := tracing.StartSpan(ctx, "Kafka.PublishStageLogEvent",
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.topic),
		attribute.String("messaging.operation", "publish"),
		attribute.String("event_type", string(evt.Type)),
		tracing.StageLogIDKey.Int64(evt.StageLogID),
	)
	defer span.End()

	start := time.Now()
	msg, err := p.message(ctx, evt)
	if err != nil {
		tracing.Fail(span, err)
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		tracing.Fail(span, err)
		metrics.RecordKafkaPublish(p.topic, "error", time.Since(start).Seconds())
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish to Kafka topic %s", p.topic)
		return err
	}

	metrics.RecordKafkaPublish(p.topic, "success", time.Since(start).Seconds())
	span.SetStatus(codes.Ok, "message published")
	p.logger.WithContext(ctx).Debugf("Published %s for stage_log %d trace=%s", evt.Type, evt.StageLogID, evt.TraceID)
	return nil
}

func (p *Producer) message(ctx context.Context, evt models.StageLogEvent) (kafka.Message, error) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.TraceID = tracing.GetTraceID(ctx)
	evt.SpanID = tracing.GetSpanID(ctx)

	data, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal stage log event: %w", err)
	}

	headers := []kafka.Header{
		{Key: "type", Value: []byte(evt.Type)},
		{Key: "stage_log_id", Value: []byte(strconv.FormatInt(evt.StageLogID, 10))},
	}
	if evt.RunID != "" {
		headers = append(headers, kafka.Header{Key: "run_id", Value: []byte(evt.RunID)})
	}
	if evt.CDCKey != 0 {
		headers = append(headers, kafka.Header{Key: "cdc_key", Value: []byte(strconv.FormatInt(evt.CDCKey, 10))})
	}
	// W3C trace context for downstream consumers.
	trace := tracing.Propagation(ctx)
	for _, key := range []string{"traceparent", "tracestate"} {
		if value := trace[key]; value != "" {
			headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
		}
	}

	return kafka.Message{
		Key:     []byte(strconv.FormatInt(evt.StageLogID, 10)),
		Value:   data,
		Headers: headers,
	}, nil
}
