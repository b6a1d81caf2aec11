package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const amqpPort nat.Port = "5672/tcp"

func setupRabbitMQ(ctx context.Context, t *testing.T) string {
	t.Helper()
	if uri := os.Getenv("TEST_RABBITMQ_URL"); uri != "" {
		return uri
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3-management",
			ExposedPorts: []string{string(amqpPort)},
			WaitingFor:   wait.ForListeningPort(amqpPort).WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate rabbitmq container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, amqpPort)
	require.NoError(t, err)
	return fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
}

func TestConnect_InvalidURI(t *testing.T) {
	_, err := Connect("not-an-amqp-uri", 2, time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rabbitmq.Connect")
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), RoutingSubscriptionActivated, SubscriptionEvent{UserID: 1}))
}

func TestChannelPublisher_Publish(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping rabbitmq integration test in short mode")
	}
	ctx := context.Background()
	uri := setupRabbitMQ(ctx, t)

	conn, err := Connect(uri, 5, time.Second)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	ch, err := SetupChannel(conn)
	require.NoError(t, err)
	publisher := NewPublisher(ch)
	defer func() { _ = publisher.Close() }()

	consumer, err := conn.Channel()
	require.NoError(t, err)
	q, err := consumer.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, consumer.QueueBind(q.Name, "subscription.*", EventsExchange, false, nil))
	deliveries, err := consumer.Consume(q.Name, "", true, false, false, false, nil)
	require.NoError(t, err)

	event := SubscriptionEvent{
		UserID:     7,
		PlanID:     1,
		OrderID:    "order_123",
		OccurredAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, publisher.Publish(ctx, RoutingSubscriptionActivated, event))

	select {
	case d := <-deliveries:
		var got SubscriptionEvent
		require.NoError(t, json.Unmarshal(d.Body, &got))
		assert.Equal(t, int64(7), got.UserID)
		assert.Equal(t, "order_123", got.OrderID)
		assert.Equal(t, RoutingSubscriptionActivated, d.RoutingKey)
		assert.Equal(t, "application/json", d.ContentType)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}

	t.Run("marshal error", func(t *testing.T) {
		err := publisher.Publish(ctx, RoutingSubscriptionLapsed, struct {
			Ch chan int `json:"ch"`
		}{Ch: make(chan int)})
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, publisher.Publish(cctx, RoutingSubscriptionLapsed, event), context.Canceled)
	})
}
