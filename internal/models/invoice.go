package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ExpenseType classifies a scanned document.
type ExpenseType string

const (
	ExpenseMaintenance ExpenseType = "maintenance"
	ExpenseTax         ExpenseType = "tax"
	ExpenseInsurance   ExpenseType = "insurance"
	ExpenseRepair      ExpenseType = "repair"
	ExpenseOther       ExpenseType = "other"
)

// ExpenseTypes lists the accepted expense types in display order.
var ExpenseTypes = []ExpenseType{ExpenseMaintenance, ExpenseTax, ExpenseInsurance, ExpenseRepair, ExpenseOther}

// IsValidExpenseType checks if t is one of ExpenseTypes.
func IsValidExpenseType(t ExpenseType) bool {
	switch t {
	case ExpenseMaintenance, ExpenseTax, ExpenseInsurance, ExpenseRepair, ExpenseOther:
		return true
	default:
		return false
	}
}

// InvoiceAnalysis is the structured data extracted from a photographed invoice.
type InvoiceAnalysis struct {
	Analysis  string      `json:"analysis" validate:"required"`
	Date      string      `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Amount    float64     `json:"amount" validate:"gte=0"`
	Label     string      `json:"label" validate:"max=200"`
	Type      ExpenseType `json:"type" validate:"omitempty,oneof=maintenance tax insurance repair other"`
	IsConform bool        `json:"is_conform"`
}

// Invoice is a stored expense document.
type Invoice struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Date         string             `json:"date" bson:"date"`                   // YYYY-MM-DD, document date
	AnalysisDate string             `json:"analysis_date" bson:"analysis_date"` // YYYY-MM-DD
	Amount       float64            `json:"amount" bson:"amount"`               // in EUR, VAT included
	Label        string             `json:"label" bson:"label"`
	Type         ExpenseType        `json:"type" bson:"type"`
	Analysis     string             `json:"analysis" bson:"analysis"`
	IsConform    bool               `json:"is_conform" bson:"is_conform"`
	Failsafe     bool               `json:"failsafe" bson:"failsafe"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
}

// DisplayDate returns the document date, falling back to the analysis date.
func (i Invoice) DisplayDate() string {
	if i.Date != "" {
		return i.Date
	}
	return i.AnalysisDate
}
