package sinks

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/docs-discovery-console/internal/notify"
)

func TestPubSubSinkPublishesJSON(t *testing.T) {
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "docs-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "docs-notifications")
	require.NoError(t, err)

	sink := NewPubSubSink(topic)
	batch := []notify.Notification{
		note(notify.KindCrawl, notify.SeveritySuccess, "Crawl Complete"),
		note(notify.KindPersistence, notify.SeverityError, "Save Failed"),
	}
	require.NoError(t, sink.Consume(ctx, batch))
	require.NoError(t, sink.Close(ctx))

	msgs := srv.Messages()
	require.Len(t, msgs, 2)
	titles := map[string]string{}
	for _, m := range msgs {
		var n notify.Notification
		require.NoError(t, json.Unmarshal(m.Data, &n))
		titles[n.Title] = m.Attributes["severity"]
		require.Equal(t, "run-1", m.Attributes["run_id"])
	}
	require.Equal(t, "success", titles["Crawl Complete"])
	require.Equal(t, "error", titles["Save Failed"])
}

func TestPubSubSinkWithoutTopic(t *testing.T) {
	t.Parallel()

	sink := NewPubSubSink(nil)
	require.Error(t, sink.Consume(context.Background(), []notify.Notification{note(notify.KindCrawl, notify.SeverityInfo, "x")}))
	require.NoError(t, sink.Close(context.Background()))
}
