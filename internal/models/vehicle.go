package models

import (
	"time"
)

// CarDetails holds the technical sheet of the vehicle.
type CarDetails struct {
	MaxMass                 int     `bson:"max_mass" json:"max_mass" validate:"gte=0"`                   // in kg
	FiscalHorsepower        int     `bson:"fiscal_horsepower" json:"fiscal_horsepower" validate:"gte=0"` // CV
	NextTechnicalInspection string  `bson:"next_technical_inspection" json:"next_technical_inspection" validate:"omitempty,datetime=2006-01-02"`
	TireSize                string  `bson:"tire_size" json:"tire_size,omitempty"`
	TireBrand               string  `bson:"tire_brand" json:"tire_brand,omitempty"`
	TirePrice               float64 `bson:"tire_price" json:"tire_price,omitempty" validate:"gte=0"`
	OilType                 string  `bson:"oil_type" json:"oil_type,omitempty"`
	OilBrand                string  `bson:"oil_brand" json:"oil_brand,omitempty"`
	OilPrice                float64 `bson:"oil_price" json:"oil_price,omitempty" validate:"gte=0"`
	Notes                   string  `bson:"notes" json:"notes,omitempty"`
}

// DefaultCarDetails mirrors the values used when a vehicle has never been edited.
func DefaultCarDetails() CarDetails {
	return CarDetails{
		MaxMass:                 2320,
		FiscalHorsepower:        10,
		NextTechnicalInspection: "2026-12-26",
	}
}

// Vehicle is the tracked car with its current odometer reading.
type Vehicle struct {
	ID               string     `bson:"_id" json:"id"`
	Make             string     `bson:"make" json:"make"`
	Model            string     `bson:"model" json:"model"`
	Year             int        `bson:"year" json:"year"`
	Mileage          int        `bson:"mileage" json:"mileage"` // in kilometers
	Details          CarDetails `bson:"details" json:"details"`
	MileageUpdatedAt time.Time  `bson:"mileage_updated_at" json:"mileage_updated_at"`
	CreatedAt        time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `bson:"updated_at" json:"updated_at"`
}

// SameState reports whether v and other would persist identically, ignoring timestamps.
func (v Vehicle) SameState(other Vehicle) bool {
	return v.ID == other.ID &&
		v.Make == other.Make &&
		v.Model == other.Model &&
		v.Year == other.Year &&
		v.Mileage == other.Mileage &&
		v.Details == other.Details
}
