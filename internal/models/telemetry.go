package models

import (
	"time"
)

// OdometerReading is an odometer sample pushed by the car (OBD dongle or simulator).
type OdometerReading struct {
	VehicleID  string    `bson:"vehicle_id" json:"vehicle_id,omitempty"`
	Odometer   int       `bson:"odometer" json:"odometer"`
	RecordedAt time.Time `bson:"recorded_at" json:"recorded_at"`
}
