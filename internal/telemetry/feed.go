// Package telemetry connects the car's odometer feed (an MQTT broker) to the garage.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/apperr"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/config"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/garage"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/maintenance"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/metrics"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

const (
	odometerSuffix = "odometer"
	alertsSuffix   = "alerts"

	defaultQoS            = 1
	defaultConnectTimeout = 10 * time.Second
	handleTimeout         = 15 * time.Second
)

// OdometerTopic returns the topic readings are published on.
func OdometerTopic(prefix string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + odometerSuffix
}

// AlertsTopic returns the retained topic holding the current alerts.
func AlertsTopic(prefix string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + alertsSuffix
}

// Garage is the part of garage.Service the feed drives.
type Garage interface {
	UpdateMileage(ctx context.Context, km int) (*models.Vehicle, error)
	Alerts(ctx context.Context) ([]maintenance.Alert, error)
}

// Options configure the broker connection.
type Options struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	QoS            byte
	ConnectTimeout time.Duration
}

// OptionsFromConfig maps the MQTT settings of the service configuration.
func OptionsFromConfig(cfg config.MQTTConfig) Options {
	return Options{
		Broker:      cfg.Broker,
		ClientID:    cfg.ClientID,
		Username:    cfg.Username,
		Password:    cfg.Password,
		TopicPrefix: cfg.TopicPrefix,
	}
}

func (o Options) withDefaults() Options {
	if o.TopicPrefix == "" {
		o.TopicPrefix = "carbook"
	}
	if o.ClientID == "" {
		o.ClientID = "carbook"
	}
	if o.QoS == 0 {
		o.QoS = defaultQoS
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	return o
}

// AlertMessage is the retained payload published after every accepted reading.
type AlertMessage struct {
	Mileage     int                 `json:"mileage"`
	Alerts      []maintenance.Alert `json:"alerts"`
	PublishedAt time.Time           `json:"published_at"`
}

// Feed subscribes to odometer readings and applies them to the garage.
type Feed struct {
	client  mqtt.Client
	garage  Garage
	metrics *metrics.Collector
	opts    Options
	publish func(topic string, payload []byte) error
	now     func() time.Time
	baseCtx context.Context
}

// NewFeed creates a feed for the broker in opts. Nothing connects until Start.
func NewFeed(opts Options, g Garage, collector *metrics.Collector) *Feed {
	opts = opts.withDefaults()
	f := &Feed{
		garage:  g,
		metrics: collector,
		opts:    opts,
		now:     time.Now,
		baseCtx: context.Background(),
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetOnConnectHandler(f.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost")
		})
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}
	f.client = mqtt.NewClient(clientOpts)
	f.publish = f.publishRetained
	return f
}

// Start connects to the broker. The subscription is (re)established on every connect.
func (f *Feed) Start(ctx context.Context) error {
	f.baseCtx = ctx
	token := f.client.Connect()
	if !token.WaitTimeout(f.opts.ConnectTimeout) {
		return fmt.Errorf("mqtt connect to %s: timed out after %s", f.opts.Broker, f.opts.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect to %s: %w", f.opts.Broker, err)
	}
	return nil
}

// Stop disconnects, letting in-flight work finish for up to 250ms.
func (f *Feed) Stop() {
	if f.client != nil && f.client.IsConnected() {
		f.client.Disconnect(250)
	}
	log.Info("Odometer feed stopped")
}

func (f *Feed) onConnect(c mqtt.Client) {
	topic := OdometerTopic(f.opts.TopicPrefix)
	token := c.Subscribe(topic, f.opts.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		ctx, cancel := context.WithTimeout(f.baseCtx, handleTimeout)
		defer cancel()
		if err := f.HandleReading(ctx, msg.Payload()); err != nil {
			log.WithError(err).WithField("topic", msg.Topic()).Error("Failed to handle odometer reading")
		}
	})
	if token.WaitTimeout(f.opts.ConnectTimeout) && token.Error() != nil {
		log.WithError(token.Error()).WithField("topic", topic).Error("MQTT subscribe failed")
		return
	}
	log.WithField("topic", topic).Info("Subscribed to odometer feed")
}

// HandleReading applies one JSON reading. Malformed, out of range and rollback readings are
// logged and dropped; only store and broker failures are returned.
func (f *Feed) HandleReading(ctx context.Context, payload []byte) error {
	var reading models.OdometerReading
	if err := json.Unmarshal(payload, &reading); err != nil {
		f.metrics.RecordOdometer("invalid")
		log.WithError(err).Warn("Dropping malformed odometer reading")
		return nil
	}

	entry := log.WithFields(log.Fields{"odometer": reading.Odometer, "recorded_at": reading.RecordedAt})
	v, err := f.garage.UpdateMileage(ctx, reading.Odometer)
	switch {
	case errors.Is(err, garage.ErrMileageRollback):
		f.metrics.RecordOdometer("rejected")
		entry.Warn("Dropping odometer rollback")
		return nil
	case apperr.CodeOf(err) == apperr.CodeInvalidInput:
		f.metrics.RecordOdometer("invalid")
		entry.WithError(err).Warn("Dropping invalid odometer reading")
		return nil
	case err != nil:
		f.metrics.RecordOdometer("failed")
		return fmt.Errorf("update mileage: %w", err)
	}
	f.metrics.RecordOdometer("accepted")
	entry.Debug("Odometer reading accepted")

	return f.publishAlerts(ctx, v.Mileage)
}

func (f *Feed) publishAlerts(ctx context.Context, mileage int) error {
	alerts, err := f.garage.Alerts(ctx)
	if err != nil {
		return fmt.Errorf("load alerts: %w", err)
	}
	payload, err := json.Marshal(AlertMessage{Mileage: mileage, Alerts: alerts, PublishedAt: f.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal alerts: %w", err)
	}
	if err := f.publish(AlertsTopic(f.opts.TopicPrefix), payload); err != nil {
		return fmt.Errorf("publish alerts: %w", err)
	}
	return nil
}

func (f *Feed) publishRetained(topic string, payload []byte) error {
	token := f.client.Publish(topic, f.opts.QoS, true, payload)
	if !token.WaitTimeout(f.opts.ConnectTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}
