// Package consumer subscribes to critical sensor alerts on RabbitMQ and logs them.
package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	logger "gitlab.com/apiario/colmeia.server/src/production/COL.Logger"
	colmodels "gitlab.com/apiario/colmeia.server/src/production/COL.Models"
)

// Broker contract shared with the sensor API that publishes the alerts
const (
	ExchangeName = "sensors_exchange"
	QueueName    = "sensors_alerts_queue"
	RoutingKey   = "sensors.alerts.critical"
)

var (
	// ErrConnectionLost is returned by Run when the broker closes the delivery channel
	ErrConnectionLost = errors.New("alert delivery channel closed by broker")

	// ErrNotStarted is returned by Run before a successful Start
	ErrNotStarted = errors.New("alert consumer not started")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// MessageDecodeError means a delivery body was not a valid alert
type MessageDecodeError struct {
	Err error
}

func (e *MessageDecodeError) Error() string {
	return fmt.Sprintf("decode alert message: %v", e.Err)
}

func (e *MessageDecodeError) Unwrap() error {
	return e.Err
}

// Channel is the subset of *amqp.Channel the consumer uses
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// AlertConsumer logs every critical alert routed to QueueName
type AlertConsumer struct {
	openChannel func() (Channel, error)
	logger      *logger.Logger
	state       atomic.Int32

	channel    Channel
	deliveries <-chan amqp.Delivery
}

// NewAlertConsumer creates a consumer on an established connection
func NewAlertConsumer(conn *amqp.Connection, log *logger.Logger) *AlertConsumer {
	return newAlertConsumer(func() (Channel, error) {
		ch, err := conn.Channel()
		if err != nil {
			return nil, err
		}
		return ch, nil
	}, log)
}

func newAlertConsumer(openChannel func() (Channel, error), log *logger.Logger) *AlertConsumer {
	c := &AlertConsumer{
		openChannel: openChannel,
		logger:      log.WithComponent("alert_consumer"),
	}
	c.setState(StateConnected)
	return c
}

// State reports how far the consumer got through its startup sequence
func (c *AlertConsumer) State() State {
	return State(c.state.Load())
}

func (c *AlertConsumer) setState(s State) {
	c.state.Store(int32(s))
}

// Start opens a channel, declares the topology and registers the subscription.
// Any failure is returned and the consumer must not be used further.
func (c *AlertConsumer) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ch, err := c.openChannel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	c.channel = ch
	c.setState(StateChannelOpen)

	if err := ch.ExchangeDeclare(ExchangeName, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return c.abort(fmt.Errorf("failed to declare exchange %s: %w", ExchangeName, err))
	}

	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return c.abort(fmt.Errorf("failed to declare queue %s: %w", QueueName, err))
	}

	if err := ch.QueueBind(QueueName, RoutingKey, ExchangeName, false, nil); err != nil {
		return c.abort(fmt.Errorf("failed to bind queue %s to %s: %w", QueueName, RoutingKey, err))
	}

	msgs, err := ch.Consume(QueueName, "", false, false, false, false, nil)
	if err != nil {
		return c.abort(fmt.Errorf("failed to register consumer on %s: %w", QueueName, err))
	}
	c.deliveries = msgs
	c.setState(StateSubscribed)

	c.logger.Logger.Info().
		Str("exchange", ExchangeName).
		Str("queue", QueueName).
		Str("routing_key", RoutingKey).
		Msg("Listening for critical sensor alerts")

	return nil
}

func (c *AlertConsumer) abort(err error) error {
	_ = c.channel.Close()
	c.channel = nil
	c.setState(StateConnected)
	return err
}

// Run handles deliveries until ctx is cancelled (returns nil) or the broker
// closes the delivery channel (returns ErrConnectionLost).
func (c *AlertConsumer) Run(ctx context.Context) error {
	if c.deliveries == nil {
		return ErrNotStarted
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Alert consumer shutting down")
			return nil
		case msg, ok := <-c.deliveries:
			if !ok {
				c.setState(StateDisconnected)
				c.logger.Warn("Alert delivery channel closed")
				return ErrConnectionLost
			}
			c.handleDelivery(msg)
		}
	}
}

// Close releases the channel
func (c *AlertConsumer) Close() error {
	c.setState(StateDisconnected)
	if c.channel == nil {
		return nil
	}
	err := c.channel.Close()
	c.channel = nil
	if err != nil && !errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("failed to close channel: %w", err)
	}
	return nil
}

func (c *AlertConsumer) handleDelivery(msg amqp.Delivery) {
	if len(msg.Body) == 0 {
		c.logger.Logger.Warn().Uint64("delivery_tag", msg.DeliveryTag).Msg("Empty alert message, acknowledging")
		c.ack(msg)
		return
	}

	alert, err := DecodeAlert(msg.Body)
	if err != nil {
		c.logger.Logger.Error().
			Err(err).
			Uint64("delivery_tag", msg.DeliveryTag).
			Msg("Rejecting malformed alert message")
		if nackErr := msg.Nack(false, false); nackErr != nil {
			c.logger.ErrorWithError(nackErr, "Failed to reject alert message")
		}
		return
	}

	event := alertFields(c.logger.Logger.Warn(), alert)
	event.Uint64("delivery_tag", msg.DeliveryTag).Msg("Critical sensor alert received")

	c.ack(msg)
}

// alertFields adds every alert field once. A field of an unexpected type is
// written as the raw JSON it arrived with.
func alertFields(event *zerolog.Event, alert colmodels.AlertMessage) *zerolog.Event {
	fields := []struct {
		name  string
		key   string
		value interface{}
	}{
		{colmodels.AlertFieldType, "alert_type", alert.AlertType},
		{colmodels.AlertFieldSensorID, "sensor_id", string(alert.SensorID)},
		{colmodels.AlertFieldRecordedValue, "recorded_value", alert.RecordedValue},
		{colmodels.AlertFieldThreshold, "threshold", alert.Threshold},
		{colmodels.AlertFieldTimestamp, "alert_timestamp", alert.Timestamp},
	}

	for _, f := range fields {
		if raw, ok := alert.Unexpected[f.name]; ok {
			event = event.RawJSON(f.key, raw)
			continue
		}
		event = event.Interface(f.key, f.value)
	}

	if raw, ok := alert.Unexpected[colmodels.AlertFieldPayload]; ok {
		event = event.RawJSON("payload", raw)
	}
	return event
}

func (c *AlertConsumer) ack(msg amqp.Delivery) {
	if err := msg.Ack(false); err != nil {
		c.logger.ErrorWithError(err, "Failed to acknowledge alert message")
	}
}

// DecodeAlert parses a delivery body, ignoring a leading UTF-8 BOM.
// Only invalid JSON and a JSON null are decode errors.
func DecodeAlert(body []byte) (colmodels.AlertMessage, error) {
	var alert colmodels.AlertMessage
	if err := json.Unmarshal(bytes.TrimPrefix(body, utf8BOM), &alert); err != nil {
		return colmodels.AlertMessage{}, &MessageDecodeError{Err: err}
	}
	return alert, nil
}
