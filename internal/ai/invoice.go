package ai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/apperr"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
	"google.golang.org/genai"
)

const invoiceInstruction = `Analyse ce document lié à une Mercedes E 200 d (moteur OM 654, boîte 9G-Tronic).
Le document peut être une facture d'entretien, une assurance, une taxe ou une réparation.
1. Extrais la date précise (YYYY-MM-DD) et le montant total TTC.
2. Crée un libellé court (ex : "Entretien Service B", "Assurance 2024").
3. Identifie le type : maintenance, tax, insurance, repair ou other.
4. Conformité : une vidange moteur DOIT utiliser une huile MB 229.52. Pour un entretien général,
   vérifie le liquide de frein (tous les 2 ans) et la vidange de boîte 9G (tous les 5 ans).
   Pour une taxe ou une assurance valide, is_conform vaut true.
5. Rédige une analyse qualitative courte (points positifs, oublis, conformité des pièces).`

func invoiceSchema() *genai.Schema {
	types := make([]string, 0, len(models.ExpenseTypes))
	for _, t := range models.ExpenseTypes {
		types = append(types, string(t))
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"analysis":   {Type: genai.TypeString, Description: "Detailed qualitative analysis of the document."},
			"date":       {Type: genai.TypeString, Description: "Document date (YYYY-MM-DD)."},
			"amount":     {Type: genai.TypeNumber, Description: "Total amount including VAT."},
			"label":      {Type: genai.TypeString, Description: "Short name for the expense."},
			"type":       {Type: genai.TypeString, Enum: types, Description: "Category of the document."},
			"is_conform": {Type: genai.TypeBoolean, Description: "Whether the work matches the manufacturer requirements."},
		},
		Required: []string{"analysis", "date", "amount", "label", "type", "is_conform"},
	}
}

// AnalyzeInvoice extracts structured expense data from an image or PDF.
func (c *Client) AnalyzeInvoice(ctx context.Context, data []byte, mimeType string) (*models.InvoiceAnalysis, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, mimeType),
			genai.NewPartFromText(languageDirective(c.cfg.Language)),
		}, genai.RoleUser),
	}

	resp, err := c.generate(ctx, "invoice", c.cfg.TextModel, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(invoiceInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    invoiceSchema(),
	})
	if err != nil {
		return nil, err
	}

	var analysis models.InvoiceAnalysis
	if err := json.Unmarshal([]byte(resp.Text()), &analysis); err != nil {
		return nil, apperr.New(apperr.CodeAIServiceUnavailable, "invoice analysis returned malformed output", err)
	}
	analysis.Type = models.ExpenseType(strings.ToLower(string(analysis.Type)))
	return &analysis, nil
}
