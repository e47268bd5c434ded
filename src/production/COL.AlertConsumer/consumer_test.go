package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	logger "gitlab.com/apiario/colmeia.server/src/production/COL.Logger"
)

type fakeChannel struct {
	calls      []string
	failOn     string
	deliveries chan amqp.Delivery
	closed     bool

	exchangeKind    string
	exchangeDurable bool
	queueDurable    bool
	autoAck         bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{deliveries: make(chan amqp.Delivery, 16)}
}

func (f *fakeChannel) step(name string) error {
	f.calls = append(f.calls, name)
	if f.failOn == name {
		return errors.New(name + " refused")
	}
	return nil
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.exchangeKind = kind
	f.exchangeDurable = durable
	return f.step("exchange:" + name)
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	f.queueDurable = durable
	return amqp.Queue{Name: name}, f.step("queue:" + name)
}

func (f *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	return f.step("bind:" + key)
}

func (f *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	f.autoAck = autoAck
	if err := f.step("consume:" + queue); err != nil {
		return nil, err
	}
	return f.deliveries, nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

type outcome struct {
	tag     uint64
	acked   bool
	requeue bool
}

type fakeAcknowledger struct {
	outcomes []outcome
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.outcomes = append(a.outcomes, outcome{tag: tag, acked: true})
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.outcomes = append(a.outcomes, outcome{tag: tag, requeue: requeue})
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	a.outcomes = append(a.outcomes, outcome{tag: tag, requeue: requeue})
	return nil
}

func newTestConsumer(t *testing.T, ch *fakeChannel) (*AlertConsumer, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	c := newAlertConsumer(func() (Channel, error) { return ch, nil }, logger.New(&buf, "debug", false))
	return c, &buf
}

func delivery(ack amqp.Acknowledger, tag uint64, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, Body: []byte(body)}
}

func logEntries(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestStart_DeclaresTopologyInOrder(t *testing.T) {
	ch := newFakeChannel()
	c, _ := newTestConsumer(t, ch)
	assert.Equal(t, StateConnected, c.State())

	require.NoError(t, c.Start(context.Background()))

	assert.Equal(t, []string{
		"exchange:sensors_exchange",
		"queue:sensors_alerts_queue",
		"bind:sensors.alerts.critical",
		"consume:sensors_alerts_queue",
	}, ch.calls)
	assert.Equal(t, "topic", ch.exchangeKind)
	assert.True(t, ch.exchangeDurable)
	assert.True(t, ch.queueDurable)
	assert.False(t, ch.autoAck)
	assert.Equal(t, StateSubscribed, c.State())
}

func TestStart_StopsAtFirstFailure(t *testing.T) {
	ch := newFakeChannel()
	ch.failOn = "queue:sensors_alerts_queue"
	c, _ := newTestConsumer(t, ch)

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sensors_alerts_queue")
	assert.Equal(t, []string{"exchange:sensors_exchange", "queue:sensors_alerts_queue"}, ch.calls)
	assert.True(t, ch.closed)
	assert.NotEqual(t, StateSubscribed, c.State())

	assert.ErrorIs(t, c.Run(context.Background()), ErrNotStarted)
}

func TestStart_ChannelOpenFailure(t *testing.T) {
	boom := errors.New("channel limit reached")
	c := newAlertConsumer(func() (Channel, error) { return nil, boom }, logger.Nop())

	err := c.Start(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateConnected, c.State())
}

func TestRun_LogsAndAcksAlert(t *testing.T) {
	ch := newFakeChannel()
	c, buf := newTestConsumer(t, ch)
	require.NoError(t, c.Start(context.Background()))
	buf.Reset()

	ack := &fakeAcknowledger{}
	ch.deliveries <- delivery(ack, 1, `{"tipoAlerta":"TEMP_HIGH","sensorId":"S9","valorRegistrado":41.2,"limite":38,"timestamp":"2024-05-01T12:00:00Z"}`)
	close(ch.deliveries)

	assert.ErrorIs(t, c.Run(context.Background()), ErrConnectionLost)
	assert.Equal(t, StateDisconnected, c.State())

	require.Len(t, ack.outcomes, 1)
	assert.True(t, ack.outcomes[0].acked)

	assert.Equal(t, 1, strings.Count(buf.String(), "TEMP_HIGH"))

	var alertEntry map[string]interface{}
	for _, entry := range logEntries(t, buf) {
		if entry["alert_type"] != nil {
			alertEntry = entry
		}
	}
	require.NotNil(t, alertEntry)
	assert.Equal(t, "TEMP_HIGH", alertEntry["alert_type"])
	assert.Equal(t, "S9", alertEntry["sensor_id"])
	assert.Equal(t, 41.2, alertEntry["recorded_value"])
	assert.Equal(t, 38.0, alertEntry["threshold"])
	assert.Equal(t, "2024-05-01T12:00:00Z", alertEntry["alert_timestamp"])
	assert.Equal(t, "alert_consumer", alertEntry["component"])
}

func TestRun_MalformedThenValid(t *testing.T) {
	ch := newFakeChannel()
	c, buf := newTestConsumer(t, ch)
	require.NoError(t, c.Start(context.Background()))

	ack := &fakeAcknowledger{}
	ch.deliveries <- delivery(ack, 1, `{"tipoAlerta":`)
	ch.deliveries <- delivery(ack, 2, `{"alertType":"HUMIDITY_LOW","sensorId":7,"recordedValue":12,"threshold":20,"timestamp":"t"}`)
	close(ch.deliveries)

	assert.ErrorIs(t, c.Run(context.Background()), ErrConnectionLost)

	require.Len(t, ack.outcomes, 2)
	assert.Equal(t, outcome{tag: 1, acked: false, requeue: false}, ack.outcomes[0])
	assert.Equal(t, outcome{tag: 2, acked: true}, ack.outcomes[1])

	assert.Contains(t, buf.String(), "Rejecting malformed alert message")
	assert.Contains(t, buf.String(), `"sensor_id":"7"`)
	assert.Equal(t, 1, strings.Count(buf.String(), "HUMIDITY_LOW"))
}

func TestRun_EmptyBodyIsAcked(t *testing.T) {
	ch := newFakeChannel()
	c, buf := newTestConsumer(t, ch)
	require.NoError(t, c.Start(context.Background()))

	ack := &fakeAcknowledger{}
	ch.deliveries <- delivery(ack, 5, "")
	close(ch.deliveries)

	assert.ErrorIs(t, c.Run(context.Background()), ErrConnectionLost)
	require.Len(t, ack.outcomes, 1)
	assert.True(t, ack.outcomes[0].acked)
	assert.Contains(t, buf.String(), "Empty alert message")
}

func TestRun_StopsOnCancel(t *testing.T) {
	ch := newFakeChannel()
	c, _ := newTestConsumer(t, ch)
	require.NoError(t, c.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	require.NoError(t, c.Close())
	assert.True(t, ch.closed)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestDecodeAlert(t *testing.T) {
	alert, err := DecodeAlert([]byte("\xef\xbb\xbf{\"tipoAlerta\":\"WEIGHT_DROP\",\"sensorId\":\"S1\"}"))
	require.NoError(t, err)
	assert.Equal(t, "WEIGHT_DROP", alert.AlertType)
	assert.Nil(t, alert.RecordedValue)

	for _, body := range []string{"not json", "null", "\xef\xbb\xbfnull", `{"tipoAlerta":"X"`} {
		_, err := DecodeAlert([]byte(body))
		var decodeErr *MessageDecodeError
		assert.ErrorAs(t, err, &decodeErr, body)
	}

	for _, body := range []string{"[1,2]", `{"sensorId":{}}`, `"TEMP_HIGH"`, "{}"} {
		_, err := DecodeAlert([]byte(body))
		assert.NoError(t, err, body)
	}
}

func TestRun_MistypedFieldsAreAckedAndLoggedOnce(t *testing.T) {
	ch := newFakeChannel()
	c, buf := newTestConsumer(t, ch)
	require.NoError(t, c.Start(context.Background()))
	buf.Reset()

	ack := &fakeAcknowledger{}
	ch.deliveries <- delivery(ack, 3, `{"tipoAlerta":"TEMP_HIGH","sensorId":true,"valorRegistrado":"40.5","limite":38,"timestamp":1704067200000}`)
	close(ch.deliveries)

	assert.ErrorIs(t, c.Run(context.Background()), ErrConnectionLost)

	require.Len(t, ack.outcomes, 1)
	assert.Equal(t, outcome{tag: 3, acked: true}, ack.outcomes[0])

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "TEMP_HIGH"))
	assert.Equal(t, 1, strings.Count(out, `"40.5"`))
	assert.Equal(t, 1, strings.Count(out, "1704067200000"))
	assert.NotContains(t, out, "Rejecting")

	var alertEntry map[string]interface{}
	for _, entry := range logEntries(t, buf) {
		if entry["alert_type"] != nil {
			alertEntry = entry
		}
	}
	require.NotNil(t, alertEntry)
	assert.Equal(t, true, alertEntry["sensor_id"])
	assert.Equal(t, "40.5", alertEntry["recorded_value"])
	assert.Equal(t, 38.0, alertEntry["threshold"])
	assert.Equal(t, 1704067200000.0, alertEntry["alert_timestamp"])
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "subscribed", StateSubscribed.String())
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "unknown", State(42).String())
}
