package maintenance

import (
	"fmt"
	"strconv"
	"strings"
)

// Critical returns the statuses with at most DueSoonThreshold km remaining, overdue included.
func Critical(statuses []TaskStatus) []TaskStatus {
	var critical []TaskStatus
	for _, s := range statuses {
		if s.Remaining <= DueSoonThreshold {
			critical = append(critical, s)
		}
	}
	return critical
}

// StatusLines renders one line per task for the diagnosis prompt.
func StatusLines(statuses []TaskStatus, lang string) string {
	lines := make([]string, 0, len(statuses))
	for _, s := range statuses {
		if IsFrench(lang) {
			lines = append(lines, fmt.Sprintf("- %s : %s restants (%s, prévu vers %s)",
				s.Task.Name, FormatMileage(s.Remaining, lang), s.Level, s.EstimatedDate))
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s remaining (%s, expected around %s)",
			s.Task.Name, FormatMileage(s.Remaining, lang), s.Level, s.EstimatedDate))
	}
	return strings.Join(lines, "\n")
}

// SpokenSummary builds the text read aloud by the speech alert.
func SpokenSummary(owner string, mileage int, statuses []TaskStatus, lang string) string {
	critical := Critical(statuses)
	names := make([]string, 0, len(critical))
	for _, s := range critical {
		names = append(names, s.Task.Name)
	}

	var b strings.Builder
	if IsFrench(lang) {
		b.WriteString(greeting("Bonjour", owner))
		b.WriteString("Votre véhicule affiche " + FormatMileage(mileage, lang) + ". ")
		if len(critical) == 0 {
			b.WriteString("Tous vos systèmes sont au vert. Bonne route.")
			return b.String()
		}
		b.WriteString("Attention, vous avez " + strconv.Itoa(len(critical)) + " " +
			plural(len(critical), "entretien prioritaire", "entretiens prioritaires") + " : ")
		b.WriteString(strings.Join(names, " et "))
		b.WriteString(". Veuillez consulter votre garage prochainement.")
		return b.String()
	}

	b.WriteString(greeting("Hello", owner))
	b.WriteString("Your car shows " + FormatMileage(mileage, lang) + ". ")
	if len(critical) == 0 {
		b.WriteString("All systems are green. Drive safely.")
		return b.String()
	}
	b.WriteString("Attention, you have " + strconv.Itoa(len(critical)) + " " +
		plural(len(critical), "priority service", "priority services") + ": ")
	b.WriteString(strings.Join(names, " and "))
	b.WriteString(". Please contact your garage soon.")
	return b.String()
}

func greeting(word, owner string) string {
	if owner == "" {
		return word + ". "
	}
	return word + " " + owner + ". "
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
