package domain

import "sort"

// AlertKind is the closed category of an alert. Wire values are the
// Portuguese identifiers stored in the "tipo" column.
type AlertKind string

const (
	KindRenewalDue        AlertKind = "renovacao_apolice"
	KindInstallmentDue    AlertKind = "parcela_vencendo"
	KindClaimPending      AlertKind = "sinistro_pendente"
	KindTaskOverdue       AlertKind = "tarefa_atrasada"
	KindCommissionPending AlertKind = "comissao_pendente"
	KindClientBirthday    AlertKind = "aniversario_cliente"
	KindConsortiumDue     AlertKind = "consorcio_parcela"
	KindHealthPlanAdjust  AlertKind = "plano_saude_reajuste"
	KindFinancingDue      AlertKind = "financiamento_parcela"
	KindDocumentPending   AlertKind = "documento_pendente"
)

// Priority buckets, lowest to highest.
type Priority string

const (
	PriorityLow    Priority = "baixa"
	PriorityMedium Priority = "media"
	PriorityHigh   Priority = "alta"
	PriorityUrgent Priority = "urgente"
)

// Priorities lists every priority from highest to lowest.
var Priorities = []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow}

// Rank orders priorities (baixa=1 .. urgente=4); unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	}
	return 0
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool { return p.Rank() > 0 }

// KindInfo is the rendering and routing metadata attached to a kind.
type KindInfo struct {
	Kind            AlertKind `json:"tipo"`
	Label           string    `json:"label"`
	Icon            string    `json:"icone"`
	EntityKind      string    `json:"entidade_tipo"`
	DefaultPriority Priority  `json:"prioridade_padrao"`
}

var kinds = map[AlertKind]KindInfo{
	KindRenewalDue:        {KindRenewalDue, "Renovação de apólice", "refresh-cw", "apolice", PriorityHigh},
	KindInstallmentDue:    {KindInstallmentDue, "Parcela a vencer", "calendar", "parcela", PriorityHigh},
	KindClaimPending:      {KindClaimPending, "Sinistro pendente", "alert-triangle", "sinistro", PriorityHigh},
	KindTaskOverdue:       {KindTaskOverdue, "Tarefa atrasada", "clock", "tarefa", PriorityHigh},
	KindCommissionPending: {KindCommissionPending, "Comissão pendente", "dollar-sign", "comissao", PriorityMedium},
	KindClientBirthday:    {KindClientBirthday, "Aniversário de cliente", "gift", "cliente", PriorityLow},
	KindConsortiumDue:     {KindConsortiumDue, "Parcela de consórcio", "layers", "consorcio_parcela", PriorityHigh},
	KindHealthPlanAdjust:  {KindHealthPlanAdjust, "Reajuste de plano de saúde", "heart", "plano_saude", PriorityMedium},
	KindFinancingDue:      {KindFinancingDue, "Parcela de financiamento", "credit-card", "financiamento_parcela", PriorityHigh},
	KindDocumentPending:   {KindDocumentPending, "Documento pendente", "file-text", "documento", PriorityMedium},
}

// Info returns the metadata of k and whether k is a known kind.
func (k AlertKind) Info() (KindInfo, bool) {
	info, ok := kinds[k]
	return info, ok
}

// Valid reports whether k is one of the known kinds.
func (k AlertKind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Kinds returns the metadata of every kind, sorted by wire value.
func Kinds() []KindInfo {
	out := make([]KindInfo, 0, len(kinds))
	for _, info := range kinds {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// PriorityFor derives an alert's priority from its kind and the number of
// days until its reference date (negative when overdue). It is a pure
// function: the same inputs always yield the same priority.
func PriorityFor(kind AlertKind, daysUntil int) Priority {
	switch kind {
	case KindClientBirthday:
		return PriorityLow
	case KindCommissionPending:
		return PriorityMedium
	case KindClaimPending:
		return PriorityHigh
	case KindTaskOverdue:
		if -daysUntil > 3 {
			return PriorityUrgent
		}
		return PriorityHigh
	}
	switch {
	case daysUntil <= 0:
		return PriorityUrgent
	case daysUntil <= 7:
		return PriorityHigh
	case daysUntil <= 15:
		return PriorityMedium
	default:
		return PriorityLow
	}
}
