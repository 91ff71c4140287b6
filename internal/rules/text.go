package rules

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tbourn/brokerage-alerts/internal/domain"
)

// clientName renders a client's name in title case, or a neutral
// placeholder when the client or its name is missing.
func clientName(c *domain.Client) string {
	if c == nil || strings.TrimSpace(c.Name) == "" {
		return "cliente não informado"
	}
	// Casers keep state; build one per call.
	return cases.Title(language.BrazilianPortuguese).String(strings.TrimSpace(c.Name))
}

func orDash(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "-"
	}
	return s
}

func insurer(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return ""
	}
	return " (" + s + ")"
}

func formatDate(t time.Time) string { return t.Format("02/01/2006") }

// formatMoney renders v in reais with Brazilian grouping, e.g. R$ 1.234,50.
func formatMoney(v float64) string {
	return "R$ " + message.NewPrinter(language.BrazilianPortuguese).Sprintf("%.2f", v)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

// dueIn phrases a non-negative distance to a due day.
func dueIn(d int) string {
	switch {
	case d == 0:
		return "vence hoje"
	case d == 1:
		return "vence amanhã"
	default:
		return "vence em " + plural(d, "dia", "dias")
	}
}
