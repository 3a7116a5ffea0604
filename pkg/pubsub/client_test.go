package pubsub

import (
	"context"
	"reflect"
	"testing"

	"github.com/angelmondragon/restaurant-core/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project string
		name    string
		want    string
	}{
		{"proj", "events", "projects/proj/topics/events"},
		{"proj", " projects/other/topics/events ", "projects/other/topics/events"},
		{"", "events", ""},
		{"proj", "", ""},
	}
	for _, tc := range cases {
		if got := topicResourceName(tc.project, tc.name); got != tc.want {
			t.Fatalf("topicResourceName(%q, %q) = %q, want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestTopicNamesDeduplicates(t *testing.T) {
	got := topicNames(config.PubSubConfig{EventsTopic: "events", InventoryTopic: "inventory"})
	want := []string{"events", "inventory"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("topicNames = %v, want %v", got, want)
	}
	if names := topicNames(config.PubSubConfig{}); len(names) != 0 {
		t.Fatalf("expected no topics without events topic, got %v", names)
	}
}

func TestNilClientPublisher(t *testing.T) {
	var c *Client
	if c.Publisher("events") != nil {
		t.Fatal("expected nil publisher from nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close nil client: %v", err)
	}
}

func TestNilClientPingAndOrdering(t *testing.T) {
	var c *Client
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error from nil client")
	}
	if c.OrderingEnabled() {
		t.Fatal("nil client should not enable ordering")
	}
}

func TestClientOptionsPrefersInlineCredentials(t *testing.T) {
	if opts := clientOptions(config.GCPConfig{}); len(opts) != 0 {
		t.Fatalf("expected default credentials, got %d options", len(opts))
	}
	opts := clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/key.json"})
	if len(opts) != 1 {
		t.Fatalf("expected one option, got %d", len(opts))
	}
	if opts := clientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/key.json"}); len(opts) != 1 {
		t.Fatalf("expected credentials file option, got %d", len(opts))
	}
}
