package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/apperr"
	"google.golang.org/genai"
)

// DiagnosisInput is the vehicle context sent to the advisor.
type DiagnosisInput struct {
	Mileage        int
	TaskStatus     string // one line per task, see maintenance.StatusLines
	InspectionDate string
}

const diagnosisInstruction = `Tu es un ingénieur expert Mercedes-Benz (Assyst Plus), spécialisé dans les motorisations OM 654 et les transmissions 9G-Tronic.
Ta mission est d'analyser l'état de maintenance d'une Mercedes Classe E 200 d (W213) de 2017/2018.

RÈGLES D'EXPERT :
1. Huile : vidange tous les 12 000 km (MB 229.52 ou 229.71) pour protéger la distribution.
2. Distribution OM 654 : un cliquetis métallique au démarrage à froid signale l'usure des culbuteurs.
3. Boîte 9G-Tronic : intervalle réduit à 80 000 km ou 4 ans, fluide MB 236.17, carter remplacé.
4. AdBlue : additif anti-cristallisant pour préserver la pompe SCR.
5. Batterie AGM : durée de vie 4 à 5 ans, voyant Start/Stop jaune = remplacement.
6. Châssis : surveiller les silentblocs des bras de poussée avant.

DIRECTIVES :
1. Combine les km restants, l'âge du véhicule et l'échéance du contrôle technique.
2. Ton précis et didactique, 6 à 7 phrases maximum.
3. Termine par une recommandation capitale marquée par "✨" puis une note optimiste sur la longévité du moteur.`

var diagnosisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"diagnosis": {Type: genai.TypeString, Description: "The diagnosis of the vehicle."},
	},
	Required: []string{"diagnosis"},
}

// Diagnose asks the advisor for a short predictive-maintenance assessment.
func (c *Client) Diagnose(ctx context.Context, input DiagnosisInput) (string, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "CONTEXTE DU VÉHICULE :\n- Kilométrage actuel : %d km\n- État des entretiens :\n%s\n", input.Mileage, input.TaskStatus)
	if input.InspectionDate != "" {
		fmt.Fprintf(&prompt, "- Prochain contrôle technique : %s\n", input.InspectionDate)
	}
	prompt.WriteString(languageDirective(c.cfg.Language))

	resp, err := c.generate(ctx, "diagnosis", c.cfg.TextModel,
		[]*genai.Content{genai.NewContentFromText(prompt.String(), genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(diagnosisInstruction, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    diagnosisSchema,
		})
	if err != nil {
		return "", err
	}

	var out struct {
		Diagnosis string `json:"diagnosis"`
	}
	if err := json.Unmarshal([]byte(resp.Text()), &out); err != nil {
		return "", apperr.New(apperr.CodeAIServiceUnavailable, "diagnosis returned malformed output", err)
	}
	if strings.TrimSpace(out.Diagnosis) == "" {
		return "", apperr.New(apperr.CodeAIServiceUnavailable, "diagnosis returned no output", nil)
	}
	return out.Diagnosis, nil
}

func languageDirective(lang string) string {
	if strings.HasPrefix(strings.ToLower(lang), "fr") {
		return "Réponds en français."
	}
	return "Answer in English."
}
