package pubsub

import (
	"context"
	"testing"

	"github.com/foodbowl/foodbowl-backend/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project, topic, want string
	}{
		{"foodbowl", "order-events", "projects/foodbowl/topics/order-events"},
		{"foodbowl", " order-events ", "projects/foodbowl/topics/order-events"},
		{"", "projects/other/topics/x", "projects/other/topics/x"},
		{"", "order-events", ""},
		{"foodbowl", "", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, TopicResourceName(tc.project, tc.topic), "%s/%s", tc.project, tc.topic)
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(context.Background(), config.PubSubConfig{OrdersTopic: "t"}, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(context.Background(), config.PubSubConfig{ProjectID: "p"}, nil)
	assert.ErrorIs(t, err, errTopicRequired)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher())
	assert.Equal(t, "", c.TopicName())
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}

func TestClientOptions(t *testing.T) {
	assert.Empty(t, clientOptions(config.PubSubConfig{}))
	assert.Len(t, clientOptions(config.PubSubConfig{Endpoint: "europe-west1-pubsub.googleapis.com:443"}), 1)
}
