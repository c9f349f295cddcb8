package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/met-odp-etl/internal/config"
	"github.com/couchcryptid/met-odp-etl/internal/domain"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes typed records to a Kafka topic, one message per record.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	runID  string
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic. Every
// message carries runID in its headers.
func NewWriter(cfg *config.Config, runID string, clock clockwork.Clock, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Writer{writer: w, runID: runID, clock: clock, logger: logger}
}

// LoadBatch serializes and publishes the typed form of every observation in
// a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, batch []domain.Observation) error {
	if len(batch) == 0 {
		return nil
	}
	processedAt := w.clock.Now()
	msgs := make([]kafkago.Message, len(batch))
	for i := range batch {
		msg, err := serializeToMessage(batch[i].Met, w.runID, processedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d records: %w", len(msgs), err)
	}
	w.logger.Debug("published records", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// messageKey is "<station_number>|<time>".
func messageKey(rec domain.MetRecord) []byte {
	return []byte(strconv.Itoa(rec.StationNumber) + "|" + strconv.FormatInt(rec.Time, 10))
}

// serializeToMessage marshals a MetRecord into a Kafka message.
func serializeToMessage(rec domain.MetRecord, runID string, processedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize record %d/%d: %w", rec.StationNumber, rec.Time, err)
	}
	return kafkago.Message{
		Key:   messageKey(rec),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "station_number", Value: []byte(strconv.Itoa(rec.StationNumber))},
			{Key: "run_id", Value: []byte(runID)},
			{Key: "processed_at", Value: []byte(processedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
