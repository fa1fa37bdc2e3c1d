package maintenance

import (
	"strconv"
	"strings"
	"time"
)

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// IsFrench reports whether lang selects French output.
func IsFrench(lang string) bool {
	return strings.HasPrefix(strings.ToLower(lang), "fr")
}

// FormatLongDate renders t as a long date: "19 octobre 2026" for French, "October 19, 2026" otherwise.
func FormatLongDate(t time.Time, lang string) string {
	if IsFrench(lang) {
		return strconv.Itoa(t.Day()) + " " + frenchMonths[t.Month()-1] + " " + strconv.Itoa(t.Year())
	}
	return t.Format("January 2, 2006")
}

// FormatMileage renders km with thousands grouping and the unit, e.g. "47 713 km".
func FormatMileage(km int, lang string) string {
	sep := ","
	if IsFrench(lang) {
		sep = " "
	}
	return groupThousands(km, sep) + " km"
}

func groupThousands(n int, sep string) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := strconv.Itoa(n)
	if len(digits) <= 3 {
		return sign + digits
	}
	var b strings.Builder
	b.WriteString(sign)
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > len(sign) {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
