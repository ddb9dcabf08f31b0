package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// NATSSubscriber subscribes to the record stream on NATS JetStream and feeds
// raw payloads into recordChan for the single-threaded engine loop. Records
// for a given client must be published in original order; JetStream's
// per-stream ordering preserves that as long as one consumer is used.
type NATSSubscriber struct {
	js         jetstream.JetStream
	recordChan chan<- RawRecord
	log        zerolog.Logger
	consumers  []jetstream.ConsumeContext
}

// RawRecord is an unparsed record payload from NATS, ready for
// ParseRawRecord before dispatch to the engine.
type RawRecord struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	AckFunc   func() // ACK after successful processing
	NakFunc   func() // NAK on failure (will be redelivered)
}

const (
	StreamName     = "TX_RECORDS"
	RecordsSubject = "tx.records.>"
	ConsumerName   = "txstream-records"
)

func NewNATSSubscriber(js jetstream.JetStream, recordChan chan<- RawRecord, log zerolog.Logger) *NATSSubscriber {
	return &NATSSubscriber{
		js:         js,
		recordChan: recordChan,
		log:        log,
	}
}

// Subscribe creates the durable JetStream consumer for the record subject.
// Explicit ACK, max_deliver=5, ack_wait=30s.
func (ns *NATSSubscriber) Subscribe(ctx context.Context) error {
	consumer, err := ns.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       ConsumerName,
		FilterSubject: RecordsSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", ConsumerName, err)
	}

	consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
		raw := RawRecord{
			Subject:   msg.Subject(),
			Data:      msg.Data(),
			Timestamp: time.Now(),
			AckFunc:   func() { msg.Ack() },
			NakFunc:   func() { msg.Nak() },
		}

		select {
		case ns.recordChan <- raw:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", ConsumerName, err)
	}

	ns.consumers = append(ns.consumers, consumerContext)
	ns.log.Info().Str("subject", RecordsSubject).Str("consumer", ConsumerName).Msg("subscribed")

	return nil
}

// Stop drains all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, c := range ns.consumers {
		c.Stop()
	}
}

// EnsureStream creates the record stream if it does not exist.
// FileStorage, retention=Limits, max_age=72h.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{RecordsSubject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", StreamName, err)
	}
	return nil
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string, log zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
