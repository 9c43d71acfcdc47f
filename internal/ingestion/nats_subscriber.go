package ingestion

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSSubscriber subscribes to NATS JetStream subjects and feeds raw
// decoded-log messages into the engine via eventChan. Each subject
// carries one event type so consumers can scale independently.
type NATSSubscriber struct {
	js        jetstream.JetStream
	eventChan chan<- RawEvent
	consumers []jetstream.ConsumeContext
}

// RawEvent is the parsed-but-untyped message from NATS, ready for the
// shell to validate and convert into a typed event.Event.
type RawEvent struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	AckFunc   func() // Call to ACK the NATS message after successful processing
	NakFunc   func() // Call to NAK on failure (will be redelivered)
}

// SubjectConfig maps NATS subjects to event types.
type SubjectConfig struct {
	Subject      string
	EventType    string
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns the standard subject configuration.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "optx.router.initiate.>", EventType: "InitiateTrade", ConsumerName: "optx-router-initiate", StreamName: "OPTX_ROUTER"},
		{Subject: "optx.router.open.>", EventType: "OpenTrade", ConsumerName: "optx-router-open", StreamName: "OPTX_ROUTER"},
		{Subject: "optx.router.cancel.>", EventType: "CancelTrade", ConsumerName: "optx-router-cancel", StreamName: "OPTX_ROUTER"},
		{Subject: "optx.options.create.>", EventType: "Create", ConsumerName: "optx-options-create", StreamName: "OPTX_OPTIONS"},
		{Subject: "optx.options.exercise.>", EventType: "Exercise", ConsumerName: "optx-options-exercise", StreamName: "OPTX_OPTIONS"},
		{Subject: "optx.options.expire.>", EventType: "Expire", ConsumerName: "optx-options-expire", StreamName: "OPTX_OPTIONS"},
		{Subject: "optx.options.pause.>", EventType: "Pause", ConsumerName: "optx-options-pause", StreamName: "OPTX_OPTIONS"},
		{Subject: "optx.referral.update.>", EventType: "UpdateReferral", ConsumerName: "optx-referral-update", StreamName: "OPTX_REFERRAL"},
		{Subject: "optx.referral.claim.>", EventType: "LBFRClaim", ConsumerName: "optx-referral-claim", StreamName: "OPTX_REFERRAL"},
		{Subject: "optx.pool.provide.>", EventType: "PoolProvide", ConsumerName: "optx-pool-provide", StreamName: "OPTX_POOL"},
		{Subject: "optx.pool.withdraw.>", EventType: "PoolWithdraw", ConsumerName: "optx-pool-withdraw", StreamName: "OPTX_POOL"},
		{Subject: "optx.pool.profit.>", EventType: "PoolProfit", ConsumerName: "optx-pool-profit", StreamName: "OPTX_POOL"},
		{Subject: "optx.pool.loss.>", EventType: "PoolLoss", ConsumerName: "optx-pool-loss", StreamName: "OPTX_POOL"},
		{Subject: "optx.token.transfer.>", EventType: "TokenTransfer", ConsumerName: "optx-token-transfer", StreamName: "OPTX_TOKEN"},
	}
}

func NewNATSSubscriber(js jetstream.JetStream, eventChan chan<- RawEvent) *NATSSubscriber {
	return &NATSSubscriber{
		js:        js,
		eventChan: eventChan,
	}
}

// Subscribe creates JetStream consumers for all configured subjects.
// Consumers use explicit ACK, max_deliver=5, ack_wait=30s.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		consumer, err := ns.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
			raw := RawEvent{
				Subject:   msg.Subject(),
				Data:      msg.Data(),
				Timestamp: time.Now(),
				AckFunc:   func() { msg.Ack() },
				NakFunc:   func() { msg.Nak() },
			}

			select {
			case ns.eventChan <- raw:
				// Successfully queued for processing
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		ns.consumers = append(ns.consumers, consumerContext)
		log.Printf("INFO: subscribed to %s (consumer=%s)", cfg.Subject, cfg.ConsumerName)
	}

	return nil
}

// EnsureStreams creates the required JetStream streams if they don't
// exist. Streams use FileStorage, retention=Limits, max_age=72h.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	streams := []jetstream.StreamConfig{
		{
			Name:      "OPTX_ROUTER",
			Subjects:  []string{"optx.router.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "OPTX_OPTIONS",
			Subjects:  []string{"optx.options.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "OPTX_REFERRAL",
			Subjects:  []string{"optx.referral.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "OPTX_POOL",
			Subjects:  []string{"optx.pool.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "OPTX_TOKEN",
			Subjects:  []string{"optx.token.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
	}

	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		log.Printf("INFO: ensured stream %s", cfg.Name)
	}

	return nil
}

// Stop gracefully stops all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
	log.Println("INFO: NATS subscribers stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("WARN: NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Println("INFO: NATS reconnected")
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
