package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/maintenance"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/telemetry"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// Odometer advances a simulated mileage at an average daily distance with some day-to-day noise.
type Odometer struct {
	km          float64
	kmPerDay    float64
	daysPerTick float64
	jitter      float64 // fraction of the daily distance, e.g. 0.3 for +/-30%
	rnd         *rand.Rand
}

// NewOdometer starts at startKm.
func NewOdometer(startKm int, kmPerDay, daysPerTick, jitter float64, seed int64) *Odometer {
	return &Odometer{
		km:          float64(startKm),
		kmPerDay:    kmPerDay,
		daysPerTick: daysPerTick,
		jitter:      jitter,
		rnd:         rand.New(rand.NewSource(seed)),
	}
}

// Advance moves the odometer by one tick and returns the new reading. It never goes backwards.
func (o *Odometer) Advance() int {
	d := o.kmPerDay * o.daysPerTick
	if o.jitter > 0 {
		d *= 1 + (o.rnd.Float64()*2-1)*o.jitter
	}
	if d > 0 {
		o.km += d
	}
	return o.Reading()
}

// Reading is the current whole-kilometer value.
func (o *Odometer) Reading() int {
	return int(o.km)
}

// Sender delivers a reading to the service.
type Sender interface {
	Send(ctx context.Context, reading models.OdometerReading) error
}

// httpSender pushes readings with PUT /api/vehicle/mileage.
type httpSender struct {
	apiURL string
	token  string
	client *http.Client
}

func newHTTPSender(apiURL, token string) *httpSender {
	return &httpSender{
		apiURL: strings.TrimSuffix(apiURL, "/"),
		token:  token,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *httpSender) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, s.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	return s.client.Do(req)
}

func (s *httpSender) Send(ctx context.Context, reading models.OdometerReading) error {
	resp, err := s.do(ctx, http.MethodPut, "/vehicle/mileage", map[string]int{"mileage": reading.Odometer})
	if err != nil {
		return fmt.Errorf("failed to send mileage: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mileage update failed with status: %d", resp.StatusCode)
	}
	return nil
}

// CurrentMileage reads the stored odometer so a run continues from it.
func (s *httpSender) CurrentMileage(ctx context.Context) (int, error) {
	resp, err := s.do(ctx, http.MethodGet, "/vehicle", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch vehicle: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("vehicle fetch failed with status: %d", resp.StatusCode)
	}
	var v models.Vehicle
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return 0, fmt.Errorf("failed to decode vehicle: %w", err)
	}
	return v.Mileage, nil
}

// mqttSender publishes readings on the odometer topic.
type mqttSender struct {
	client mqtt.Client
	topic  string
	qos    byte
}

func newMQTTSender(broker, clientID, username, password, prefix string) (*mqttSender, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)
	if username != "" {
		opts.SetUsername(username)
		opts.SetPassword(password)
	}
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, errors.New("timed out connecting to broker")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return &mqttSender{client: client, topic: telemetry.OdometerTopic(prefix), qos: 1}, nil
}

func (s *mqttSender) Send(ctx context.Context, reading models.OdometerReading) error {
	payload, err := json.Marshal(reading)
	if err != nil {
		return err
	}
	token := s.client.Publish(s.topic, s.qos, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *mqttSender) Close() {
	s.client.Disconnect(250)
}

// run advances the odometer every interval and sends each reading until ctx is done.
// A failed send is logged and the next tick carries on.
func run(ctx context.Context, odo *Odometer, sender Sender, vehicleID string, interval time.Duration, now func() time.Time) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}

		reading := models.OdometerReading{VehicleID: vehicleID, Odometer: odo.Advance(), RecordedAt: now()}
		if err := sender.Send(ctx, reading); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).WithField("odometer", reading.Odometer).Error("Failed to send reading")
			continue
		}
		log.WithField("odometer", reading.Odometer).Info("Sent reading")
	}
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return f
		}
	}
	return def
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := envString("SIM_MODE", "http")
	vehicleID := envString("CARBOOK_VEHICLE_ID", "primary")
	interval := time.Duration(envInt("SIM_TICK_SECONDS", 2)) * time.Second
	if interval < time.Second {
		interval = time.Second
	}
	kmPerDay := envFloat("SIM_KM_PER_DAY", maintenance.KmPerDay)
	daysPerTick := envFloat("SIM_DAYS_PER_TICK", 1)
	startKm := envInt("SIM_START_KM", -1)

	var sender Sender
	switch mode {
	case "mqtt":
		s, err := newMQTTSender(
			envString("MQTT_BROKER", "tcp://localhost:1883"),
			envString("SIM_MQTT_CLIENT_ID", "carbook-simulator"),
			os.Getenv("MQTT_USERNAME"),
			os.Getenv("MQTT_PASSWORD"),
			envString("MQTT_TOPIC_PREFIX", "carbook"),
		)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to MQTT broker")
		}
		defer s.Close()
		sender = s
	default:
		s := newHTTPSender(envString("API_BASE_URL", "http://localhost:8080/api"), os.Getenv("SIM_AUTH_TOKEN"))
		if startKm < 0 {
			km, err := s.CurrentMileage(ctx)
			if err != nil {
				log.WithError(err).Warn("Could not read current mileage, starting from 0")
			}
			startKm = km
		}
		sender = s
	}
	if startKm < 0 {
		startKm = 0
	}

	odo := NewOdometer(startKm, kmPerDay, daysPerTick, 0.3, time.Now().UnixNano())
	log.WithFields(log.Fields{
		"mode":          mode,
		"start_km":      startKm,
		"km_per_day":    kmPerDay,
		"days_per_tick": daysPerTick,
		"interval":      interval,
	}).Info("Starting odometer simulation")

	run(ctx, odo, sender, vehicleID, interval, time.Now)
	log.WithField("odometer", odo.Reading()).Info("Simulation stopped")
}
