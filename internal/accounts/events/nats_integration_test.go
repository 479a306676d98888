//go:build integration

package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/events"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/vmihailenco/msgpack/v5"
)

func TestNATSPublisherDelivers(t *testing.T) {
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2-alpine",
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForListeningPort("4222/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	endpoint, err := ctr.Endpoint(ctx, "")
	require.NoError(t, err)
	url := "nats://" + endpoint

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(sub.Close)
	ch := make(chan *nats.Msg, 1)
	_, err = sub.ChanSubscribe(events.SubjectUserChanged, ch)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	pub, err := events.ConnectNATS(url, "accounts-test", slogx.Discard())
	require.NoError(t, err)
	t.Cleanup(pub.Close)

	sync := &events.AppSync{Pub: pub}
	require.NoError(t, sync.UserChanged(ctx, "t1", "us_1"))

	select {
	case msg := <-ch:
		var ev events.UserChanged
		require.NoError(t, msgpack.Unmarshal(msg.Data, &ev))
		require.Equal(t, "us_1", ev.UserID)
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}
}
