package garage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/apperr"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/validation"
	log "github.com/sirupsen/logrus"
)

// MaxInvoiceBytes bounds uploaded invoice documents.
const MaxInvoiceBytes = 10 << 20

const failsafePrefix = "[FAILSAFE] "

// SaveInvoice stores an analyzed invoice. An analysis that fails validation, or that the
// store rejects, is kept in failsafe mode with its raw data appended so nothing is lost.
func (s *Service) SaveInvoice(ctx context.Context, analysis models.InvoiceAnalysis) (*models.Invoice, error) {
	today := s.now().Format("2006-01-02")

	verr := validation.Struct(analysis)
	if verr == nil {
		invoice := &models.Invoice{
			Date:         analysis.Date,
			AnalysisDate: today,
			Amount:       analysis.Amount,
			Label:        labelOrDefault(analysis.Label),
			Type:         typeOrDefault(analysis.Type),
			Analysis:     analysis.Analysis,
			IsConform:    analysis.IsConform,
			CreatedAt:    s.now(),
		}
		err := s.invoices.InsertInvoice(ctx, invoice)
		if err == nil {
			s.metrics.RecordInvoice(false)
			log.WithFields(log.Fields{"label": invoice.Label, "amount": invoice.Amount}).Info("Invoice saved")
			return invoice, nil
		}
		log.WithError(err).Error("Error creating invoice, retrying in failsafe mode")
	} else {
		log.WithError(verr).Warn("Invoice analysis is invalid, saving in failsafe mode")
	}

	raw, _ := json.Marshal(analysis)
	invoice := &models.Invoice{
		AnalysisDate: today,
		Label:        labelOrDefault(""),
		Type:         models.ExpenseOther,
		Analysis:     failsafePrefix + analysis.Analysis + "\n\nStructured Data: " + string(raw),
		Failsafe:     true,
		CreatedAt:    s.now(),
	}
	if err := s.invoices.InsertInvoice(ctx, invoice); err != nil {
		return nil, apperr.Internal("failed to save invoice even in fallback mode", err)
	}
	s.metrics.RecordInvoice(true)
	return invoice, nil
}

// Expenses returns stored invoices, newest first.
func (s *Service) Expenses(ctx context.Context) ([]models.Invoice, error) {
	invoices, err := s.invoices.FindInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("load invoices: %w", err)
	}
	return invoices, nil
}

// ScanInvoice analyzes an invoice image or PDF with the advisor and stores the result.
func (s *Service) ScanInvoice(ctx context.Context, data []byte, mimeType string) (*models.Invoice, error) {
	if len(data) == 0 {
		return nil, apperr.InvalidInput("invoice is empty", nil)
	}
	if len(data) > MaxInvoiceBytes {
		return nil, ErrInvoiceTooLarge
	}
	if !supportedMedia(mimeType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, mimeType)
	}
	if s.advisor == nil {
		return nil, ErrAdvisorUnavailable
	}

	analysis, err := s.advisor.AnalyzeInvoice(ctx, data, mimeType)
	if err != nil {
		return nil, err
	}
	return s.SaveInvoice(ctx, *analysis)
}

func supportedMedia(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.HasPrefix(mimeType, "image/") || mimeType == "application/pdf"
}

func labelOrDefault(label string) string {
	if strings.TrimSpace(label) == "" {
		return "Facture"
	}
	return label
}

func typeOrDefault(t models.ExpenseType) models.ExpenseType {
	if t == "" {
		return models.ExpenseOther
	}
	return t
}
