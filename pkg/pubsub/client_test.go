package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/cuisync/pkg/config"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestResourceName(t *testing.T) {
	if got := resourceName("proj-1", kindTopic, "cuisync-sync"); got != "projects/proj-1/topics/cuisync-sync" {
		t.Fatalf("unexpected topic name %q", got)
	}
	if got := resourceName("proj-1", kindTopic, "projects/other/topics/x"); got != "projects/other/topics/x" {
		t.Fatalf("full topic names should pass through, got %q", got)
	}
	if got := resourceName("proj-1", kindSubscription, " kitchen "); got != "projects/proj-1/subscriptions/kitchen" {
		t.Fatalf("unexpected subscription name %q", got)
	}
	if got := resourceName("proj-1", kindSubscription, "projects/other/topics/x"); got != "projects/proj-1/subscriptions/projects/other/topics/x" {
		t.Fatalf("topic path must not pass as subscription, got %q", got)
	}
	if got := resourceName("proj-1", kindSubscription, ""); got != "" {
		t.Fatalf("empty subscription should yield empty name, got %q", got)
	}
}

func TestNotFoundOr(t *testing.T) {
	err := notFoundOr(status.Error(codes.NotFound, "gone"), "topic", "projects/p/topics/t")
	if err == nil || err.Error() != `topic "projects/p/topics/t" does not exist` {
		t.Fatalf("unexpected not found error %v", err)
	}
	cause := status.Error(codes.PermissionDenied, "nope")
	if err := notFoundOr(cause, "subscription", "s"); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	if c.SyncPublisher() != nil || c.SyncSubscription() != nil {
		t.Fatal("nil client should return nil handles")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error on nil client")
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.GCPConfig{}, config.PubSubConfig{}, nil); err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
	gcp := config.GCPConfig{ProjectID: "proj-1"}
	if _, err := NewClient(ctx, gcp, config.PubSubConfig{SyncSubscription: "s"}, nil); err != errTopicRequired {
		t.Fatalf("expected topic error, got %v", err)
	}
	if _, err := NewClient(ctx, gcp, config.PubSubConfig{SyncTopic: "t"}, nil); err != errNoSubscription {
		t.Fatalf("expected subscription error, got %v", err)
	}
}
