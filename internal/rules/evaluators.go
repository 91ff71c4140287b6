package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/brokerage-alerts/internal/domain"
	"github.com/tbourn/brokerage-alerts/internal/repo"
)

// Renewal flags active policies expiring within days (inclusive) from today.
func Renewal(db *gorm.DB, loc *time.Location, days int) Evaluator {
	return &rule[domain.Policy]{
		kind: domain.KindRenewalDue,
		db:   db,
		loc:  loc,
		load: rangeLoader(repo.ListActivePoliciesExpiring, days),
		fact: func(p domain.Policy, _ *time.Location) fact {
			return fact{ownerID: p.OwnerID, entityID: p.ID, day: dateDay(p.ExpiresOn)}
		},
		accept: within(days),
		text: func(p domain.Policy, d int) (string, string) {
			return "Renovação de apólice",
				fmt.Sprintf("A apólice %s%s de %s %s (%s).",
					orDash(p.Number), insurer(p.Insurer), clientName(p.Client), dueIn(d), formatDate(*p.ExpiresOn))
		},
	}
}

// Installment flags unpaid premium installments due within days.
func Installment(db *gorm.DB, loc *time.Location, days int) Evaluator {
	return &rule[domain.Installment]{
		kind: domain.KindInstallmentDue,
		db:   db,
		loc:  loc,
		load: rangeLoader(repo.ListOpenInstallmentsDue, days),
		fact: func(i domain.Installment, _ *time.Location) fact {
			return fact{ownerID: i.OwnerID, entityID: i.ID, day: dateDay(i.DueOn)}
		},
		accept: within(days),
		text: func(i domain.Installment, d int) (string, string) {
			var c *domain.Client
			number := "-"
			if i.Policy != nil {
				c = i.Policy.Client
				number = orDash(i.Policy.Number)
			}
			return "Parcela a vencer",
				fmt.Sprintf("A parcela %d da apólice %s de %s, no valor de %s, %s (%s).",
					i.Number, number, clientName(c), formatMoney(i.Amount), dueIn(d), formatDate(*i.DueOn))
		},
	}
}

// Consortium flags unpaid consortium installments due within days.
func Consortium(db *gorm.DB, loc *time.Location, days int) Evaluator {
	return &rule[domain.ConsortiumInstallment]{
		kind: domain.KindConsortiumDue,
		db:   db,
		loc:  loc,
		load: rangeLoader(repo.ListOpenConsortiumInstallmentsDue, days),
		fact: func(i domain.ConsortiumInstallment, _ *time.Location) fact {
			return fact{ownerID: i.OwnerID, entityID: i.ID, day: dateDay(i.DueOn)}
		},
		accept: within(days),
		text: func(i domain.ConsortiumInstallment, d int) (string, string) {
			return "Parcela de consórcio",
				fmt.Sprintf("A parcela %d do consórcio (grupo %s, cota %s) de %s, no valor de %s, %s (%s).",
					i.Number, orDash(i.Group), orDash(i.Quota), clientName(i.Client), formatMoney(i.Amount), dueIn(d), formatDate(*i.DueOn))
		},
	}
}

// Financing flags unpaid financing installments due within days.
func Financing(db *gorm.DB, loc *time.Location, days int) Evaluator {
	return &rule[domain.FinancingInstallment]{
		kind: domain.KindFinancingDue,
		db:   db,
		loc:  loc,
		load: rangeLoader(repo.ListOpenFinancingInstallmentsDue, days),
		fact: func(i domain.FinancingInstallment, _ *time.Location) fact {
			return fact{ownerID: i.OwnerID, entityID: i.ID, day: dateDay(i.DueOn)}
		},
		accept: within(days),
		text: func(i domain.FinancingInstallment, d int) (string, string) {
			return "Parcela de financiamento",
				fmt.Sprintf("A parcela %d do contrato %s de %s, no valor de %s, %s (%s).",
					i.Number, orDash(i.Contract), clientName(i.Client), formatMoney(i.Amount), dueIn(d), formatDate(*i.DueOn))
		},
	}
}

// HealthPlan flags active health plans with a price adjustment within days.
func HealthPlan(db *gorm.DB, loc *time.Location, days int) Evaluator {
	return &rule[domain.HealthPlan]{
		kind: domain.KindHealthPlanAdjust,
		db:   db,
		loc:  loc,
		load: rangeLoader(repo.ListActiveHealthPlansAdjusting, days),
		fact: func(h domain.HealthPlan, _ *time.Location) fact {
			return fact{ownerID: h.OwnerID, entityID: h.ID, day: dateDay(h.AdjustmentOn)}
		},
		accept: within(days),
		text: func(h domain.HealthPlan, d int) (string, string) {
			when := "em " + plural(d, "dia", "dias")
			if d == 0 {
				when = "hoje"
			}
			return "Reajuste de plano de saúde",
				fmt.Sprintf("O plano de saúde de %s (%s) tem reajuste %s (%s).",
					clientName(h.Client), orDash(h.Operator), when, formatDate(*h.AdjustmentOn))
		},
	}
}

// OverdueTask flags open tasks whose due day is strictly before today.
func OverdueTask(db *gorm.DB, loc *time.Location) Evaluator {
	return &rule[domain.Task]{
		kind: domain.KindTaskOverdue,
		db:   db,
		loc:  loc,
		load: beforeLoader(repo.ListOpenTasksDueBefore, -1),
		fact: func(t domain.Task, _ *time.Location) fact {
			return fact{ownerID: t.OwnerID, entityID: t.ID, day: dateDay(t.DueOn)}
		},
		accept: func(d int) bool { return d < 0 },
		text: func(t domain.Task, d int) (string, string) {
			return "Tarefa atrasada",
				fmt.Sprintf("A tarefa \"%s\" está atrasada há %s (venceu em %s).",
					orDash(t.Title), plural(-d, "dia", "dias"), formatDate(*t.DueOn))
		},
	}
}

// Document flags pending documents whose deadline is within days, overdue
// ones included.
func Document(db *gorm.DB, loc *time.Location, days int) Evaluator {
	return &rule[domain.PendingDocument]{
		kind: domain.KindDocumentPending,
		db:   db,
		loc:  loc,
		load: beforeLoader(repo.ListPendingDocumentsDueBefore, days),
		fact: func(p domain.PendingDocument, _ *time.Location) fact {
			return fact{ownerID: p.OwnerID, entityID: p.ID, day: dateDay(p.Deadline)}
		},
		accept: upTo(days),
		text: func(p domain.PendingDocument, d int) (string, string) {
			when := dueIn(d)
			if d < 0 {
				when = "venceu há " + plural(-d, "dia", "dias")
			}
			return "Documento pendente",
				fmt.Sprintf("O documento \"%s\" de %s %s (prazo %s).",
					orDash(p.Name), clientName(p.Client), when, formatDate(*p.Deadline))
		},
	}
}

// Commission flags commissions still pending at least days after creation.
// The reference day is the creation day, so each commission alerts once.
func Commission(db *gorm.DB, loc *time.Location, days int) Evaluator {
	return &rule[domain.Commission]{
		kind: domain.KindCommissionPending,
		db:   db,
		loc:  loc,
		load: beforeLoader(repo.ListPendingCommissionsCreatedBefore, -days),
		fact: func(c domain.Commission, loc *time.Location) fact {
			return fact{ownerID: c.OwnerID, entityID: c.ID, day: instantDay(c.CreatedAt, loc)}
		},
		accept: olderThan(days),
		text: func(c domain.Commission, d int) (string, string) {
			var cl *domain.Client
			number := "-"
			if c.Policy != nil {
				cl = c.Policy.Client
				number = orDash(c.Policy.Number)
			}
			return "Comissão pendente",
				fmt.Sprintf("A comissão de %s da apólice %s de %s está pendente há %s.",
					formatMoney(c.Amount), number, clientName(cl), plural(-d, "dia", "dias"))
		},
	}
}

// Claim flags open or in-review claims opened at least days ago.
func Claim(db *gorm.DB, loc *time.Location, days int) Evaluator {
	return &rule[domain.Claim]{
		kind: domain.KindClaimPending,
		db:   db,
		loc:  loc,
		load: beforeLoader(repo.ListOpenClaimsOpenedBefore, -days),
		fact: func(c domain.Claim, _ *time.Location) fact {
			return fact{ownerID: c.OwnerID, entityID: c.ID, day: dateDay(c.OpenedOn)}
		},
		accept: olderThan(days),
		text: func(c domain.Claim, d int) (string, string) {
			return "Sinistro pendente",
				fmt.Sprintf("O sinistro %s de %s está em aberto há %s (aberto em %s).",
					orDash(c.Number), clientName(c.Client), plural(-d, "dia", "dias"), formatDate(*c.OpenedOn))
		},
	}
}

type birthday struct {
	db        *gorm.DB
	loc       *time.Location
	batchSize int
}

// Birthday flags clients whose birthday is today in loc. People born on
// Feb 29 are greeted on Feb 28 in non-leap years.
func Birthday(db *gorm.DB, loc *time.Location) Evaluator {
	return &birthday{db: db, loc: loc, batchSize: 500}
}

func (b *birthday) Kind() domain.AlertKind { return domain.KindClientBirthday }

func (b *birthday) Evaluate(ctx context.Context, now time.Time) ([]domain.Alert, error) {
	ctx, span := otel.Tracer("rules").Start(ctx, "Evaluate",
		trace.WithAttributes(attribute.String("alert.kind", string(domain.KindClientBirthday))),
	)
	defer span.End()

	today := domain.Today(now, b.loc)
	var out []domain.Alert
	err := repo.EachClientWithBirthDate(ctx, b.db, b.batchSize, func(clients []domain.Client) error {
		for i := range clients {
			c := &clients[i]
			if c.BirthDate == nil {
				continue
			}
			if c.OwnerID == "" || c.ID == "" {
				log.Warn().Str("evaluator", string(domain.KindClientBirthday)).Str("entity_id", c.ID).Msg("row without owner or id skipped")
				continue
			}
			if !birthdayOn(*c.BirthDate, today) {
				continue
			}
			day := today
			age := today.Year() - c.BirthDate.Year()
			msg := fmt.Sprintf("Hoje é aniversário de %s (%s). Que tal enviar uma mensagem?", clientName(c), plural(age, "ano", "anos"))
			out = append(out, newCandidate(domain.KindClientBirthday, fact{ownerID: c.OwnerID, entityID: c.ID, day: &day}, 0, "Aniversário de cliente", msg))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: load: %w", domain.KindClientBirthday, err)
	}
	span.SetAttributes(attribute.Int("candidates", len(out)))
	return out, nil
}

// birthdayOn reports whether someone born on born celebrates on today.
func birthdayOn(born, today time.Time) bool {
	bm, bd := born.Month(), born.Day()
	if bm == today.Month() && bd == today.Day() {
		return true
	}
	return bm == time.February && bd == 29 &&
		today.Month() == time.February && today.Day() == 28 && !isLeap(today.Year())
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}
