package domain

import "time"

// The models below belong to the brokerage back-office. The alerting service
// only reads them; they are migrated here solely for local development and
// tests. Every table is scoped by the owning broker's user_id.

// Status values used by the alert rules.
const (
	PolicyStatusActive      = "ativa"
	InstallmentStatusOpen   = "pendente"
	CommissionStatusPending = "pendente"
	DocumentStatusPending   = "pendente"
	HealthPlanStatusActive  = "ativo"
	ClaimStatusOpen         = "aberto"
	ClaimStatusInReview     = "em_analise"
)

// Client is a customer of the brokerage.
type Client struct {
	ID        string     `json:"id"              gorm:"type:varchar(64);primaryKey"`
	OwnerID   string     `json:"user_id"         gorm:"column:user_id;type:varchar(64);not null;index"`
	Name      string     `json:"nome"            gorm:"column:nome;type:varchar(255)"`
	Phone     *string    `json:"telefone"        gorm:"column:telefone;type:varchar(32)"`
	Email     *string    `json:"email"           gorm:"column:email;type:varchar(255)"`
	BirthDate *time.Time `json:"data_nascimento" gorm:"column:data_nascimento"`
}

// TableName returns the database table name for Client.
func (Client) TableName() string { return "clientes" }

// Policy is an insurance policy sold by the broker.
type Policy struct {
	ID        string     `json:"id"              gorm:"type:varchar(64);primaryKey"`
	OwnerID   string     `json:"user_id"         gorm:"column:user_id;type:varchar(64);not null;index"`
	ClientID  *string    `json:"cliente_id"      gorm:"column:cliente_id;type:varchar(64)"`
	Number    string     `json:"numero_apolice"  gorm:"column:numero_apolice;type:varchar(64)"`
	Insurer   string     `json:"seguradora"      gorm:"column:seguradora;type:varchar(128)"`
	Status    string     `json:"status"          gorm:"column:status;type:varchar(32);index"`
	ExpiresOn *time.Time `json:"data_vencimento" gorm:"column:data_vencimento;index"`

	Client *Client `json:"-" gorm:"foreignKey:ClientID"`
}

// TableName returns the database table name for Policy.
func (Policy) TableName() string { return "apolices" }

// Installment is a premium installment of a policy.
type Installment struct {
	ID       string     `json:"id"              gorm:"type:varchar(64);primaryKey"`
	OwnerID  string     `json:"user_id"         gorm:"column:user_id;type:varchar(64);not null;index"`
	PolicyID *string    `json:"apolice_id"      gorm:"column:apolice_id;type:varchar(64)"`
	Number   int        `json:"numero_parcela"  gorm:"column:numero_parcela"`
	Amount   float64    `json:"valor"           gorm:"column:valor"`
	Status   string     `json:"status"          gorm:"column:status;type:varchar(32);index"`
	DueOn    *time.Time `json:"data_vencimento" gorm:"column:data_vencimento;index"`

	Policy *Policy `json:"-" gorm:"foreignKey:PolicyID"`
}

// TableName returns the database table name for Installment.
func (Installment) TableName() string { return "parcelas" }

// Claim is an insurance claim opened against a policy.
type Claim struct {
	ID       string     `json:"id"              gorm:"type:varchar(64);primaryKey"`
	OwnerID  string     `json:"user_id"         gorm:"column:user_id;type:varchar(64);not null;index"`
	ClientID *string    `json:"cliente_id"      gorm:"column:cliente_id;type:varchar(64)"`
	Number   string     `json:"numero_sinistro" gorm:"column:numero_sinistro;type:varchar(64)"`
	Status   string     `json:"status"          gorm:"column:status;type:varchar(32);index"`
	OpenedOn *time.Time `json:"data_abertura"   gorm:"column:data_abertura"`

	Client *Client `json:"-" gorm:"foreignKey:ClientID"`
}

// TableName returns the database table name for Claim.
func (Claim) TableName() string { return "sinistros" }

// Task is a to-do item on the broker's agenda.
type Task struct {
	ID      string     `json:"id"              gorm:"type:varchar(64);primaryKey"`
	OwnerID string     `json:"user_id"         gorm:"column:user_id;type:varchar(64);not null;index"`
	Title   string     `json:"titulo"          gorm:"column:titulo;type:varchar(255)"`
	Done    bool       `json:"concluida"       gorm:"column:concluida;not null;default:false"`
	DueOn   *time.Time `json:"data_vencimento" gorm:"column:data_vencimento;index"`
}

// TableName returns the database table name for Task.
func (Task) TableName() string { return "tarefas" }

// Commission is the broker's commission on a policy.
type Commission struct {
	ID        string    `json:"id"         gorm:"type:varchar(64);primaryKey"`
	OwnerID   string    `json:"user_id"    gorm:"column:user_id;type:varchar(64);not null;index"`
	PolicyID  *string   `json:"apolice_id" gorm:"column:apolice_id;type:varchar(64)"`
	Amount    float64   `json:"valor"      gorm:"column:valor"`
	Status    string    `json:"status"     gorm:"column:status;type:varchar(32);index"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`

	Policy *Policy `json:"-" gorm:"foreignKey:PolicyID"`
}

// TableName returns the database table name for Commission.
func (Commission) TableName() string { return "comissoes" }

// ConsortiumInstallment is an installment of a consortium quota.
type ConsortiumInstallment struct {
	ID       string     `json:"id"              gorm:"type:varchar(64);primaryKey"`
	OwnerID  string     `json:"user_id"         gorm:"column:user_id;type:varchar(64);not null;index"`
	ClientID *string    `json:"cliente_id"      gorm:"column:cliente_id;type:varchar(64)"`
	Group    string     `json:"grupo"           gorm:"column:grupo;type:varchar(64)"`
	Quota    string     `json:"cota"            gorm:"column:cota;type:varchar(64)"`
	Number   int        `json:"numero_parcela"  gorm:"column:numero_parcela"`
	Amount   float64    `json:"valor"           gorm:"column:valor"`
	Status   string     `json:"status"          gorm:"column:status;type:varchar(32);index"`
	DueOn    *time.Time `json:"data_vencimento" gorm:"column:data_vencimento;index"`

	Client *Client `json:"-" gorm:"foreignKey:ClientID"`
}

// TableName returns the database table name for ConsortiumInstallment.
func (ConsortiumInstallment) TableName() string { return "consorcio_parcelas" }

// FinancingInstallment is an installment of a financing contract.
type FinancingInstallment struct {
	ID       string     `json:"id"              gorm:"type:varchar(64);primaryKey"`
	OwnerID  string     `json:"user_id"         gorm:"column:user_id;type:varchar(64);not null;index"`
	ClientID *string    `json:"cliente_id"      gorm:"column:cliente_id;type:varchar(64)"`
	Contract string     `json:"contrato"        gorm:"column:contrato;type:varchar(64)"`
	Number   int        `json:"numero_parcela"  gorm:"column:numero_parcela"`
	Amount   float64    `json:"valor"           gorm:"column:valor"`
	Status   string     `json:"status"          gorm:"column:status;type:varchar(32);index"`
	DueOn    *time.Time `json:"data_vencimento" gorm:"column:data_vencimento;index"`

	Client *Client `json:"-" gorm:"foreignKey:ClientID"`
}

// TableName returns the database table name for FinancingInstallment.
func (FinancingInstallment) TableName() string { return "financiamento_parcelas" }

// HealthPlan is a health insurance contract with a yearly price adjustment.
type HealthPlan struct {
	ID           string     `json:"id"            gorm:"type:varchar(64);primaryKey"`
	OwnerID      string     `json:"user_id"       gorm:"column:user_id;type:varchar(64);not null;index"`
	ClientID     *string    `json:"cliente_id"    gorm:"column:cliente_id;type:varchar(64)"`
	Operator     string     `json:"operadora"     gorm:"column:operadora;type:varchar(128)"`
	Status       string     `json:"status"        gorm:"column:status;type:varchar(32);index"`
	AdjustmentOn *time.Time `json:"data_reajuste" gorm:"column:data_reajuste;index"`

	Client *Client `json:"-" gorm:"foreignKey:ClientID"`
}

// TableName returns the database table name for HealthPlan.
func (HealthPlan) TableName() string { return "planos_saude" }

// PendingDocument is a document the broker still has to collect or deliver.
type PendingDocument struct {
	ID       string     `json:"id"          gorm:"type:varchar(64);primaryKey"`
	OwnerID  string     `json:"user_id"     gorm:"column:user_id;type:varchar(64);not null;index"`
	ClientID *string    `json:"cliente_id"  gorm:"column:cliente_id;type:varchar(64)"`
	Name     string     `json:"nome"        gorm:"column:nome;type:varchar(255)"`
	Status   string     `json:"status"      gorm:"column:status;type:varchar(32);index"`
	Deadline *time.Time `json:"data_limite" gorm:"column:data_limite;index"`

	Client *Client `json:"-" gorm:"foreignKey:ClientID"`
}

// TableName returns the database table name for PendingDocument.
func (PendingDocument) TableName() string { return "documentos" }

// Profile holds a broker's contact data and notification preferences.
// ID equals the auth user id.
type Profile struct {
	ID             string  `json:"id"                 gorm:"type:varchar(64);primaryKey"`
	Name           string  `json:"nome"               gorm:"column:nome;type:varchar(255)"`
	Email          *string `json:"email"              gorm:"column:email;type:varchar(255)"`
	Phone          *string `json:"telefone"           gorm:"column:telefone;type:varchar(32)"`
	NotifyEmail    bool    `json:"notificar_email"    gorm:"column:notificar_email;not null;default:false"`
	NotifyWhatsApp bool    `json:"notificar_whatsapp" gorm:"column:notificar_whatsapp;not null;default:false"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// SourceModels lists the back-office models, for local migrations.
func SourceModels() []any {
	return []any{
		&Client{}, &Policy{}, &Installment{}, &Claim{}, &Task{}, &Commission{},
		&ConsortiumInstallment{}, &FinancingInstallment{}, &HealthPlan{},
		&PendingDocument{}, &Profile{},
	}
}
