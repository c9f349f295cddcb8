//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/met-odp-etl/internal/adapter/kafka"
	"github.com/couchcryptid/met-odp-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/met-odp-etl/internal/config"
	"github.com/couchcryptid/met-odp-etl/internal/convert"
	"github.com/couchcryptid/met-odp-etl/internal/domain"
	"github.com/couchcryptid/met-odp-etl/internal/observability"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSinkTopic = "test-met-observations"

const input = "        Time;StationNumber;StationName                             ;    t; Q_t;EOR\n" +
	"202501010000;        13704;Sopron                                  ; -1.2;    ;EOR\n" +
	"202501010000;        12982;Szeged                                  ;  0.8;    ;EOR\n" +
	"202501010000;        12843;Budapest                                ; -999;    ;EOR\n" +
	"202501010010;        13704;Sopron                                  ; -1.4;    ;EOR\n"

// publishedMessage holds a deserialized message read from the sink topic.
type publishedMessage struct {
	Record  domain.MetRecord
	Key     string
	Headers map[string]string
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var rec domain.MetRecord
	require.NoError(t, json.Unmarshal(msg.Value, &rec), "unmarshal sink message")

	return publishedMessage{Record: rec, Key: string(msg.Key), Headers: headers}
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestConvertToKafkaAndSQLite converts one ODP file with a station filter and
// checks that the kept records reach the output file, the topic and the
// database.
func TestConvertToKafkaAndSQLite(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	dir := t.TempDir()
	in := filepath.Join(dir, "HABP_10M.csv")
	require.NoError(t, os.WriteFile(in, []byte(input), 0o600))

	const runID = "run-integration"
	clock := clockwork.NewFakeClockAt(time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC))

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaSinkTopic: testSinkTopic}
	writer := kafka.NewWriter(cfg, runID, clock, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	store, err := sqlite.New(filepath.Join(dir, "met.db"), runID, clock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	outputFormat, err := domain.ParseCsvFormat("Time,StationNumber,t")
	require.NoError(t, err)
	filter, err := domain.ParseRecordFilter("Szeged", true)
	require.NoError(t, err)

	c := convert.New(convert.Options{
		OutputDir:    filepath.Join(dir, "out"),
		OutputFormat: outputFormat,
		Filter:       filter,
		BatchSize:    2,
		RunID:        runID,
		Clock:        clock,
	}, nil, discardLogger(), observability.NewMetricsForTesting(), writer, store)

	res, err := c.ConvertFile(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Stats.Written)
	assert.Equal(t, 1, res.Stats.Filtered)

	data, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	assert.Equal(t, "Time,StationNumber,t\n"+
		"202501010000,13704,-1.2\n"+
		"202501010000,12843,\n"+
		"202501010010,13704,-1.4\n", string(data))

	consumer := newConsumer(t, broker)
	received := make([]publishedMessage, 0, 3)
	for len(received) < 3 {
		received = append(received, readPublished(ctx, t, consumer))
	}

	keys := make([]string, 0, len(received))
	for _, pm := range received {
		keys = append(keys, pm.Key)
		assert.Equal(t, runID, pm.Headers["run_id"])
		assert.Equal(t, "2025-01-02T00:00:00Z", pm.Headers["processed_at"])
		assert.Equal(t, fmt.Sprint(pm.Record.StationNumber), pm.Headers["station_number"])
	}
	assert.ElementsMatch(t, []string{"13704|202501010000", "12843|202501010000", "13704|202501010010"}, keys)

	for _, pm := range received {
		if pm.Key != "13704|202501010000" {
			continue
		}
		temp, ok := pm.Record.Number(domain.FieldTemp)
		require.True(t, ok)
		assert.InDelta(t, -1.2, temp, 1e-9)
		name, ok := pm.Record.Text(domain.FieldStationName)
		require.True(t, ok)
		assert.Equal(t, "Sopron", name)
	}

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows, err := store.Rows(ctx, 12843, 202501010000)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.FieldStationName, rows[0].Field)
	assert.Equal(t, domain.FieldEOR, rows[1].Field)
}

// TestConvertStrictPublishesNothingAfterBadLine verifies that a strict
// conversion stops at the first malformed line.
func TestConvertStrictPublishesNothingAfterBadLine(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	dir := t.TempDir()
	in := filepath.Join(dir, "HABP_10M.csv")
	bad := input[:len(input)-len("202501010010;        13704;Sopron                                  ; -1.4;    ;EOR\n")] +
		"202501010010;13704\n"
	require.NoError(t, os.WriteFile(in, []byte(bad), 0o600))

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaSinkTopic: testSinkTopic}
	writer := kafka.NewWriter(cfg, "run-strict", nil, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	c := convert.New(convert.Options{
		OutputDir:    filepath.Join(dir, "out"),
		OutputFormat: domain.DefaultCsvFormat(),
		Strict:       true,
		BatchSize:    10,
	}, nil, discardLogger(), observability.NewMetricsForTesting(), writer)

	res, err := c.ConvertFile(ctx, in)
	require.Error(t, err)
	assert.NoFileExists(t, res.Output)

	consumer := newConsumer(t, broker)
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no message on sink topic")
}
