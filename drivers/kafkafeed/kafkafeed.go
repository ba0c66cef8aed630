// Package kafkafeed carries the change feed over Kafka. Events are keyed
// by node id, so all changes to one node land in one partition and replay
// in order. Offsets are committed manually, only after the event's hook
// ran; an unprocessed event is redelivered.
package kafkafeed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/artsince/neo4j/feed"
	"github.com/artsince/neo4j/x"
)

var log = x.Log("kafkafeed")

// Source implements feed.Source on a Kafka consumer group.
type Source struct {
	reader *kafka.Reader
}

func NewSource(brokers []string, topic, groupId string) *Source {
	return &Source{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupId,
			CommitInterval: 0, // manual commits only
		}),
	}
}

func (s *Source) Stream(ctx context.Context) (<-chan feed.Message, <-chan error) {
	msgs := make(chan feed.Message)
	errs := make(chan error, 1)

	go func() {
		defer close(msgs)
		defer close(errs)

		for {
			m, err := s.reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
					return
				}
				errs <- err
				return
			}

			var ev feed.Event
			if err := json.Unmarshal(m.Value, &ev); err != nil {
				errs <- err
				return
			}

			fmsg := feed.Message{
				Event: ev,
				Commit: func(commitCtx context.Context) error {
					return s.reader.CommitMessages(commitCtx, m)
				},
			}
			select {
			case <-ctx.Done():
				return
			case msgs <- fmsg:
			}
		}
	}()
	return msgs, errs
}

func (s *Source) Close() error {
	return s.reader.Close()
}

// Publisher implements feed.Publisher on a Kafka writer.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (p *Publisher) Publish(ctx context.Context, ev feed.Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Id),
		Value: value,
	})
	if err != nil {
		x.LogErr(log, err).WithField("id", ev.Id).Error("While publishing event")
		return err
	}
	log.WithField("id", ev.Id).WithField("op", ev.Op).Debug("Published event")
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

var (
	_ feed.Source    = (*Source)(nil)
	_ feed.Publisher = (*Publisher)(nil)
)
