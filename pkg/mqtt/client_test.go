package mqtt

import (
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakePaho struct {
	pahomqtt.Client

	mu         sync.Mutex
	subscribed map[string]int
}

func (f *fakePaho) Subscribe(topic string, qos byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	f.subscribed[topic]++
	f.mu.Unlock()
	return &fakeToken{}
}

func (f *fakePaho) IsConnected() bool { return true }

func newTestClient(paho *fakePaho) *client {
	return &client{
		paho:   paho,
		broker: "tcp://test:1883",
		logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})),
		subs:   make(map[string]subscription),
	}
}

func TestSubscriptionsReplayAfterReconnect(t *testing.T) {
	paho := &fakePaho{subscribed: map[string]int{}}
	c := newTestClient(paho)

	require.NoError(t, c.Subscribe(TopicRawSensors, 0, func(Message) {}))
	assert.Equal(t, 1, paho.subscribed[TopicRawSensors])

	// The OnConnect hook fires on every reconnect; the broker has a
	// clean session and must be re-told about the filter
	c.restoreSubscriptions()
	assert.Equal(t, 2, paho.subscribed[TopicRawSensors])
}

func TestCommandTopic(t *testing.T) {
	assert.Equal(t, "automation/command/energy", CommandTopic("energy"))
	assert.Equal(t, "automation/alert/sensor/co2", AlertTopic("co2"))
}
