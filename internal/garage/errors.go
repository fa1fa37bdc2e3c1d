package garage

import "github.com/Innocase-ai/Mercedes-E-200D/internal/apperr"

var (
	ErrMileageRollback    = apperr.Conflict("mileage cannot decrease", nil)
	ErrMileageOutOfRange  = apperr.InvalidInput("mileage must be between 0 and 1000000 km", nil)
	ErrMileageUnknown     = apperr.InvalidInput("record the current mileage first", nil)
	ErrUnknownTask        = apperr.NotFound("unknown maintenance task", nil)
	ErrReservedTask       = apperr.InvalidInput("task id is reserved", nil)
	ErrInvoiceTooLarge    = apperr.InvalidInput("invoice exceeds 10 MB", nil)
	ErrUnsupportedMedia   = apperr.InvalidInput("invoice must be an image or a PDF", nil)
	ErrAdvisorUnavailable = apperr.New(apperr.CodeAIServiceUnavailable, "AI advisor is not configured", nil)
)
