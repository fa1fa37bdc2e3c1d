package ai

import (
	"encoding/base64"
	"strings"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/apperr"
)

// ParseDataURI decodes "data:<mime>;base64,<payload>".
func ParseDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", apperr.InvalidInput("expected a data URI", nil)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", apperr.InvalidInput("data URI has no payload", nil)
	}
	mimeType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return nil, "", apperr.InvalidInput("data URI must be base64 encoded", nil)
	}
	if mimeType == "" {
		return nil, "", apperr.InvalidInput("data URI has no MIME type", nil)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", apperr.InvalidInput("data URI payload is not valid base64", err)
	}
	return data, mimeType, nil
}
