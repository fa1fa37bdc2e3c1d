package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/garage"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/maintenance"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/metrics"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGarage struct{ mock.Mock }

func (m *mockGarage) UpdateMileage(ctx context.Context, km int) (*models.Vehicle, error) {
	args := m.Called(ctx, km)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *mockGarage) Alerts(ctx context.Context) ([]maintenance.Alert, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]maintenance.Alert), args.Error(1)
}

type published struct {
	topic   string
	payload []byte
}

func newTestFeed(g Garage) (*Feed, *[]published, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	f := NewFeed(Options{Broker: "tcp://127.0.0.1:1", TopicPrefix: "car"}, g, metrics.NewCollector(reg))
	f.now = func() time.Time { return time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC) }
	var sent []published
	f.publish = func(topic string, payload []byte) error {
		sent = append(sent, published{topic, payload})
		return nil
	}
	return f, &sent, reg
}

func odometerCount(t *testing.T, reg *prometheus.Registry, result string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "carbook_odometer_readings_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" && l.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "carbook/odometer", OdometerTopic("carbook"))
	assert.Equal(t, "home/e200d/alerts", AlertsTopic("home/e200d/"))
}

func TestHandleReading_AcceptedPublishesAlerts(t *testing.T) {
	g := new(mockGarage)
	f, sent, reg := newTestFeed(g)
	ctx := context.Background()
	alerts := []maintenance.Alert{{TaskID: "brakes_av", Level: maintenance.LevelOverdue, Remaining: -2713, Unit: "km"}}
	g.On("UpdateMileage", ctx, 47713).Return(&models.Vehicle{ID: "primary", Mileage: 47713}, nil)
	g.On("Alerts", ctx).Return(alerts, nil)

	err := f.HandleReading(ctx, []byte(`{"odometer":47713,"recorded_at":"2026-10-19T07:55:00Z"}`))

	require.NoError(t, err)
	require.Len(t, *sent, 1)
	assert.Equal(t, "car/alerts", (*sent)[0].topic)

	var msg AlertMessage
	require.NoError(t, json.Unmarshal((*sent)[0].payload, &msg))
	assert.Equal(t, 47713, msg.Mileage)
	require.Len(t, msg.Alerts, 1)
	assert.Equal(t, "brakes_av", msg.Alerts[0].TaskID)
	assert.Equal(t, 1.0, odometerCount(t, reg, "accepted"))
}

func TestHandleReading_DropsRollback(t *testing.T) {
	g := new(mockGarage)
	f, sent, reg := newTestFeed(g)
	ctx := context.Background()
	g.On("UpdateMileage", ctx, 100).Return(nil, garage.ErrMileageRollback)

	err := f.HandleReading(ctx, []byte(`{"odometer":100}`))

	require.NoError(t, err)
	assert.Empty(t, *sent)
	assert.Equal(t, 1.0, odometerCount(t, reg, "rejected"))
	g.AssertNotCalled(t, "Alerts", mock.Anything)
}

func TestHandleReading_DropsInvalid(t *testing.T) {
	g := new(mockGarage)
	f, sent, reg := newTestFeed(g)
	ctx := context.Background()
	g.On("UpdateMileage", ctx, -4).Return(nil, garage.ErrMileageOutOfRange)

	require.NoError(t, f.HandleReading(ctx, []byte(`not json`)))
	require.NoError(t, f.HandleReading(ctx, []byte(`{"odometer":-4}`)))

	assert.Empty(t, *sent)
	assert.Equal(t, 2.0, odometerCount(t, reg, "invalid"))
	g.AssertNumberOfCalls(t, "UpdateMileage", 1)
}

func TestHandleReading_StoreFailure(t *testing.T) {
	g := new(mockGarage)
	f, sent, reg := newTestFeed(g)
	ctx := context.Background()
	g.On("UpdateMileage", ctx, 50000).Return(nil, errors.New("connection refused"))

	err := f.HandleReading(ctx, []byte(`{"odometer":50000}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Empty(t, *sent)
	assert.Equal(t, 1.0, odometerCount(t, reg, "failed"))
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{Broker: "tcp://broker:1883"}.withDefaults()

	assert.Equal(t, "carbook", o.TopicPrefix)
	assert.Equal(t, "carbook", o.ClientID)
	assert.Equal(t, byte(1), o.QoS)
	assert.Equal(t, defaultConnectTimeout, o.ConnectTimeout)
}
