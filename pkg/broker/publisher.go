package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/uhyunpark/cdabook/pkg/app/core/orderbook"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends executed trades to a Kafka topic, one message per trade,
// keyed by good so a partition sees one good's trades in order.
type Publisher struct {
	writer messageWriter
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Publish writes trades in order in a single batch.
func (p *Publisher) Publish(ctx context.Context, trades []orderbook.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(trades))
	for _, tr := range trades {
		msg, err := encodeTrade(tr)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d trades: %w", len(trades), err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func encodeTrade(tr orderbook.Trade) (kafka.Message, error) {
	value, err := json.Marshal(tr)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode trade %s: %w", tr.ID, err)
	}
	return kafka.Message{
		Key:   []byte(tr.Good),
		Value: value,
		Time:  tr.Timestamp,
		Headers: []kafka.Header{
			{Key: "trade-id", Value: []byte(tr.ID.String())},
		},
	}, nil
}
