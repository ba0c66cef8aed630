package kafkafeed

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/artsince/neo4j/feed"
	"github.com/artsince/neo4j/x"
)

func TestPublishAndStream(t *testing.T) {
	env := os.Getenv("KAFKA_BROKERS")
	if len(env) == 0 {
		t.Skip("Kafka environment vars not set")
		return
	}
	brokers := strings.Split(env, ",")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// A fresh topic per run keeps old offsets out of the way.
	topic := "graphtest-" + x.UniqueString(6)
	adminConn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err)
	err = adminConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	require.NoError(t, err)
	require.NoError(t, adminConn.Close())

	pub := NewPublisher(brokers, topic)
	defer pub.Close()

	want := feed.Event{
		Op:       feed.OpProperty,
		Kind:     "Movie",
		Id:       "m1",
		Property: "name",
		NanoTs:   time.Now().UnixNano(),
	}
	require.NoError(t, pub.Publish(ctx, want))

	src := NewSource(brokers, topic, "graphtest-group")
	defer src.Close()

	msgs, errs := src.Stream(ctx)
	select {
	case msg := <-msgs:
		require.Equal(t, want, msg.Event)
		require.NoError(t, msg.Commit(ctx))
	case err := <-errs:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatalf("timeout waiting for message: %v", ctx.Err())
	}
}
