package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/garage"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/maintenance"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	overdueColor = lipgloss.Color("#e53935")
	dueSoonColor = lipgloss.Color("#FFC107")
	okColor      = lipgloss.Color("#8BC34A")
	mutedColor   = lipgloss.Color("#9e9e9e")

	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(mutedColor)
	mutedStyle  = lipgloss.NewStyle().Foreground(mutedColor)
)

func levelStyle(level maintenance.Level) lipgloss.Style {
	switch level {
	case maintenance.LevelOverdue:
		return lipgloss.NewStyle().Bold(true).Foreground(overdueColor)
	case maintenance.LevelDueSoon:
		return lipgloss.NewStyle().Foreground(dueSoonColor)
	default:
		return lipgloss.NewStyle().Foreground(okColor)
	}
}

func buildStatusCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the maintenance dashboard, most urgent task first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			d, err := a.garage.Dashboard(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(d)
			}
			return renderStatus(cmd.OutOrStdout(), d, cfg.Vehicle.Language)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the dashboard as JSON")
	return cmd
}

// renderStatus writes the dashboard as a colored table.
func renderStatus(w io.Writer, d *garage.Dashboard, lang string) error {
	fr := maintenance.IsFrench(lang)
	labels := []string{"Task", "Remaining", "Status", "Expected"}
	alertTitle := "Alerts"
	if fr {
		labels = []string{"Tâche", "Restant", "Statut", "Prévu vers"}
		alertTitle = "Alertes"
	}

	name := lipgloss.NewStyle().Width(28)
	remaining := lipgloss.NewStyle().Width(14).Align(lipgloss.Right)
	status := lipgloss.NewStyle().Width(10).PaddingLeft(2)

	var b strings.Builder
	v := d.Vehicle
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s %s", v.Make, v.Model)))
	b.WriteString("  ")
	b.WriteString(maintenance.FormatMileage(v.Mileage, lang))
	b.WriteString(mutedStyle.Render("  " + d.GeneratedAt))
	b.WriteString("\n\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		headerStyle.Inherit(name).Render(labels[0]),
		headerStyle.Inherit(remaining).Render(labels[1]),
		headerStyle.Inherit(status).Render(labels[2]),
		headerStyle.Render(" "+labels[3]),
	))
	b.WriteString("\n")

	for _, s := range d.Tasks {
		row := lipgloss.JoinHorizontal(lipgloss.Top,
			name.Render(s.Task.Name),
			remaining.Render(maintenance.FormatMileage(s.Remaining, lang)),
			levelStyle(s.Level).Inherit(status).Render(string(s.Level)),
			" "+s.EstimatedDate,
		)
		b.WriteString(row)
		if s.Rollback {
			b.WriteString(mutedStyle.Render("  (odometer below last service)"))
		}
		b.WriteString("\n")
	}

	if len(d.Alerts) > 0 {
		b.WriteString("\n" + titleStyle.Render(alertTitle) + "\n")
		days := "days"
		if fr {
			days = "j"
		}
		for _, a := range d.Alerts {
			b.WriteString(fmt.Sprintf("  %s  %s", levelStyle(a.Level).Render(string(a.Level)), a.Name))
			if a.Unit == "days" {
				b.WriteString(mutedStyle.Render(fmt.Sprintf("  %d %s, %s", a.Remaining, days, a.EstimatedDate)))
			} else {
				b.WriteString(mutedStyle.Render("  " + maintenance.FormatMileage(a.Remaining, lang)))
			}
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
