// Alert HTTP handlers.
//
// This file exposes the broker-facing alert endpoints:
//   - GET    /alertas                      (list, paginated, filterable, ETag)
//   - GET    /alertas/resumo               (unread summary by priority)
//   - GET    /alertas/contagem             (unread counts by kind)
//   - GET    /alertas/tipos                (kind catalogue)
//   - GET    /alertas/{id}                 (fetch one)
//   - PATCH  /alertas/{id}/lido            (mark read)
//   - POST   /alertas/marcar-todos-lidos   (mark all read)
//   - POST   /alertas                      (manual creation, Idempotency-Key)
//   - DELETE /alertas/{id}                 (delete one)
//   - DELETE /alertas/lidos/todos          (delete every read alert)
//
// Every operation is scoped to the authenticated user; another user's alert
// id answers 404.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/brokerage-alerts/internal/domain"
	"github.com/tbourn/brokerage-alerts/internal/http/middleware"
	"github.com/tbourn/brokerage-alerts/internal/repo"
	"github.com/tbourn/brokerage-alerts/internal/services"
	"github.com/tbourn/brokerage-alerts/internal/utils"
)

// IdempotencyScope is the scope under which POST /alertas keys are stored.
const IdempotencyScope = "alertas"

//
// Service contracts (context-aware)
//

// AlertService defines the alert operations consumed by HTTP handlers.
type AlertService interface {
	ListPage(ctx context.Context, ownerID string, f repo.AlertFilter, page, pageSize int) ([]domain.Alert, int64, error)
	Get(ctx context.Context, ownerID, id string) (*domain.Alert, error)
	Create(ctx context.Context, ownerID string, in services.CreateInput) (*domain.Alert, bool, error)
	MarkRead(ctx context.Context, ownerID, id string) (*domain.Alert, error)
	MarkAllRead(ctx context.Context, ownerID string) (int64, error)
	Delete(ctx context.Context, ownerID, id string) error
	DeleteAllRead(ctx context.Context, ownerID string) (int64, error)
	Summary(ctx context.Context, ownerID string) (*services.Summary, error)
	CountByKind(ctx context.Context, ownerID string) (map[domain.AlertKind]int64, error)
	Stats(ctx context.Context, ownerID string) (repo.AlertStats, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints. It depends on service interfaces to
// keep transport concerns apart from business logic.
type Handlers struct {
	alerts AlertService
	jobs   JobRunner

	// idempotency records for POST /alertas; nil disables replays
	idemDB  *gorm.DB
	idemTTL time.Duration
}

// Option customizes Handlers.
type Option func(*Handlers)

// WithIdempotency stores Idempotency-Key results of POST /alertas in db for ttl.
func WithIdempotency(db *gorm.DB, ttl time.Duration) Option {
	return func(h *Handlers) {
		h.idemDB = db
		h.idemTTL = ttl
	}
}

// New constructs Handlers bound to the given services. jobs may be nil when
// the scheduler is disabled.
func New(alerts AlertService, jobs JobRunner, opts ...Option) *Handlers {
	h := &Handlers{alerts: alerts, jobs: jobs, idemTTL: 24 * time.Hour}
	for _, o := range opts {
		o(h)
	}
	return h
}

//
// DTOs
//

// CreateAlertRequest is the JSON payload for a manual alert.
type CreateAlertRequest struct {
	Tipo           string  `json:"tipo"            binding:"required" example:"tarefa_atrasada"`
	Titulo         string  `json:"titulo"          binding:"required" example:"Ligar para o cliente"`
	Mensagem       string  `json:"mensagem"                           example:"Retornar sobre a proposta de renovação"`
	Prioridade     string  `json:"prioridade"                         example:"alta"`
	EntidadeTipo   *string `json:"entidade_tipo"                      example:"tarefa"`
	EntidadeID     *string `json:"entidade_id"                        example:"b6f1c2d4-0000-4000-8000-000000000001"`
	DataReferencia *string `json:"data_referencia"                    example:"2025-06-25"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListAlertsResponse wraps a page of alerts and pagination information.
type ListAlertsResponse struct {
	Alertas    []domain.Alert `json:"alertas"`
	Pagination Pagination     `json:"pagination"`
}

// CountResponse reports how many alerts a bulk operation touched.
type CountResponse struct {
	Count int64 `json:"count" example:"3"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ClampPage(c.Query("page"), c.Query("page_size"))
}

// parseFilter reads tipo, prioridade and lido from the query string.
func parseFilter(c *gin.Context) (repo.AlertFilter, error) {
	var f repo.AlertFilter
	if v := strings.TrimSpace(c.Query("tipo")); v != "" {
		k := domain.AlertKind(v)
		f.Kind = &k
	}
	if v := strings.TrimSpace(c.Query("prioridade")); v != "" {
		p := domain.Priority(v)
		f.Priority = &p
	}
	if v := strings.TrimSpace(c.Query("lido")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("lido must be true or false")
		}
		f.Read = &b
	}
	return f, nil
}

// listETag fingerprints the owner's alerts together with the query, so any
// insert, read, delete or dispatch changes it.
func listETag(st repo.AlertStats, rawQuery string) string {
	var ts int64
	if st.LatestCreatedAt != nil {
		ts = st.LatestCreatedAt.UnixNano()
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(rawQuery))
	return fmt.Sprintf(`W/"alertas:%d:%d:%d:%d:%x"`, st.Count, st.Unread, st.Sent, ts, h.Sum32())
}

// failAlert maps service errors to the error envelope.
func failAlert(c *gin.Context, err error, code string) {
	switch {
	case errors.Is(err, services.ErrAlertNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "alert not found")
	case errors.Is(err, services.ErrInvalidKind),
		errors.Is(err, services.ErrInvalidPriority),
		errors.Is(err, services.ErrTitleRequired),
		errors.Is(err, services.ErrTooLong),
		errors.Is(err, services.ErrInvalidReferenceDate):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, code, err.Error())
	}
}

//
// Handlers
//

// ListAlerts godoc
// @ID          listAlerts
// @Summary     List alerts (paginated)
// @Description Returns a page of the user's alerts, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Alertas
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       tipo           query   string  false "Alert kind"     example(renovacao_apolice)
// @Param       prioridade     query   string  false "Priority"       Enums(baixa, media, alta, urgente)
// @Param       lido           query   bool    false "Read state"
// @Param       page           query   int     false "Page number"    minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page" minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListAlertsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /alertas [get]
func (h *Handlers) ListAlerts(c *gin.Context) {
	ctx := c.Request.Context()
	uid := middleware.UserID(c)
	page, pageSize := clampPagination(c)
	f, err := parseFilter(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	// ETag pre-check (best effort).
	if st, err := h.alerts.Stats(ctx, uid); err == nil {
		if notModified(c, listETag(st, c.Request.URL.RawQuery)) {
			return
		}
	}

	items, total, err := h.alerts.ListPage(ctx, uid, f, page, pageSize)
	if err != nil {
		failAlert(c, err, ErrCodeListFailed)
		return
	}

	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListAlertsResponse{
		Alertas: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// Summary godoc
// @ID          alertSummary
// @Summary     Unread summary
// @Description Unread alerts per priority bucket and per kind; total equals the sum of the buckets.
// @Tags        Alertas
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object} services.Summary
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /alertas/resumo [get]
func (h *Handlers) Summary(c *gin.Context) {
	sum, err := h.alerts.Summary(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		failAlert(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, sum)
}

// CountByKind godoc
// @ID          alertCountByKind
// @Summary     Unread counts per kind
// @Description Every kind is present, zero when it has no unread alerts.
// @Tags        Alertas
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object} map[string]int64
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /alertas/contagem [get]
func (h *Handlers) CountByKind(c *gin.Context) {
	counts, err := h.alerts.CountByKind(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		failAlert(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, counts)
}

// ListKinds godoc
// @ID          listAlertKinds
// @Summary     Alert kind catalogue
// @Description Labels, icons, entity kinds and default priorities for every alert kind.
// @Tags        Alertas
// @Produce     json
// @Security    BearerAuth
// @Success     200  {array} domain.KindInfo
// @Router      /alertas/tipos [get]
func (h *Handlers) ListKinds(c *gin.Context) {
	ok(c, http.StatusOK, domain.Kinds())
}

// GetAlert godoc
// @ID          getAlert
// @Summary     Fetch one alert
// @Tags        Alertas
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Alert ID (UUID)"  format(uuid)
// @Success     200  {object} domain.Alert
// @Failure     404  {object} handlers.ErrorResponse "Alert not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /alertas/{id} [get]
func (h *Handlers) GetAlert(c *gin.Context) {
	a, err := h.alerts.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		failAlert(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, a)
}

// MarkRead godoc
// @ID          markAlertRead
// @Summary     Mark one alert as read
// @Description Idempotent; a read alert never becomes unread again.
// @Tags        Alertas
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Alert ID (UUID)"  format(uuid)
// @Success     200  {object} domain.Alert
// @Failure     404  {object} handlers.ErrorResponse "Alert not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /alertas/{id}/lido [patch]
func (h *Handlers) MarkRead(c *gin.Context) {
	a, err := h.alerts.MarkRead(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		failAlert(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, a)
}

// MarkAllRead godoc
// @ID          markAllAlertsRead
// @Summary     Mark every alert as read
// @Tags        Alertas
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object} handlers.CountResponse "Alerts updated"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /alertas/marcar-todos-lidos [post]
func (h *Handlers) MarkAllRead(c *gin.Context) {
	n, err := h.alerts.MarkAllRead(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		failAlert(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, CountResponse{Count: n})
}

// CreateAlert godoc
// @ID          createAlert
// @Summary     Create a manual alert
// @Description Creates an alert for the current user. When entidade_id is set, an existing alert with the same
// @Description (tipo, entidade_id, data_referencia) is returned with 200 instead of inserting a duplicate.
// @Description Supports idempotency via the Idempotency-Key header (same key → same alert).
// @Tags        Alertas
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"
// @Param       body             body    handlers.CreateAlertRequest  true  "Alert payload"
//
// @Success     201  {object}  domain.Alert  "Created"
// @Success     200  {object}  domain.Alert  "Existing alert (duplicate or replay)"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /alertas [post]
func (h *Handlers) CreateAlert(c *gin.Context) {
	ctx := c.Request.Context()
	uid := middleware.UserID(c)

	var req CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "tipo and titulo are required")
		return
	}
	in := services.CreateInput{
		Kind:       domain.AlertKind(strings.TrimSpace(req.Tipo)),
		Title:      req.Titulo,
		Message:    req.Mensagem,
		Priority:   domain.Priority(strings.TrimSpace(req.Prioridade)),
		EntityKind: req.EntidadeTipo,
		EntityID:   req.EntidadeID,
	}
	if req.DataReferencia != nil && strings.TrimSpace(*req.DataReferencia) != "" {
		d, err := time.Parse("2006-01-02", strings.TrimSpace(*req.DataReferencia))
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, services.ErrInvalidReferenceDate.Error()+": use YYYY-MM-DD")
			return
		}
		in.ReferenceDate = &d
	}

	// Idempotency (replay path).
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" && h.idemDB != nil {
		if rec, err := repo.GetIdempotency(ctx, h.idemDB, uid, IdempotencyScope, idemKey, time.Now().UTC()); err == nil {
			if prev, err := h.alerts.Get(ctx, uid, rec.AlertID); err == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, rec.Status, prev)
				return
			}
		}
	}

	a, created, err := h.alerts.Create(ctx, uid, in)
	if err != nil {
		failAlert(c, err, ErrCodeCreateFailed)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}

	// Idempotency (store path), best effort.
	if idemKey != "" && h.idemDB != nil {
		if _, err := repo.CreateIdempotency(ctx, h.idemDB, uid, IdempotencyScope, idemKey, a.ID, status, h.idemTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record not stored")
		}
	}
	ok(c, status, a)
}

// DeleteAlert godoc
// @ID          deleteAlert
// @Summary     Delete one alert
// @Tags        Alertas
// @Security    BearerAuth
// @Param       id  path  string  true  "Alert ID (UUID)"  format(uuid)
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Alert not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /alertas/{id} [delete]
func (h *Handlers) DeleteAlert(c *gin.Context) {
	if err := h.alerts.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		failAlert(c, err, ErrCodeDeleteFailed)
		return
	}
	noContent(c)
}

// DeleteAllRead godoc
// @ID          deleteReadAlerts
// @Summary     Delete every read alert
// @Description Unread alerts are kept.
// @Tags        Alertas
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object} handlers.CountResponse "Alerts deleted"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /alertas/lidos/todos [delete]
func (h *Handlers) DeleteAllRead(c *gin.Context) {
	n, err := h.alerts.DeleteAllRead(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		failAlert(c, err, ErrCodeDeleteFailed)
		return
	}
	ok(c, http.StatusOK, CountResponse{Count: n})
}
