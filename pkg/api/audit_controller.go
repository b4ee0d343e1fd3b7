package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adminsuite/backoffice/pkg/apiresponses"
	"github.com/adminsuite/backoffice/pkg/audit"
	"github.com/adminsuite/backoffice/pkg/system"
)

// AuditController serves the audit read API. It only queries; records enter
// the trail through capture on the write paths.
type AuditController struct {
	log        *zap.SugaredLogger
	audit      *audit.Service
	middleware gin.HandlerFunc
}

func NewAuditController(log *zap.SugaredLogger, svc *audit.Service, middleware gin.HandlerFunc) *AuditController {
	return &AuditController{
		log:        log,
		audit:      svc,
		middleware: middleware,
	}
}

func (AuditController) BasePath() string {
	return "audit/"
}

func (ac *AuditController) Register(rg *gin.RouterGroup) error {
	rg.GET("/entity/:name/:id", ac.handleGetEntityTrail)
	rg.GET("/actor/:id", ac.handleGetActorTrail)
	rg.GET("/records", ac.handleGetRecords)

	return nil
}

func (ac AuditController) Handlers() []gin.HandlerFunc {
	return []gin.HandlerFunc{ac.middleware}
}

// handleGetEntityTrail returns the full history of one entity, oldest first.
func (ac AuditController) handleGetEntityTrail(c *gin.Context) {
	entityName := c.Param("name")
	entityID := c.Param("id")

	records, err := ac.audit.GetByEntity(c.Request.Context(), entityName, entityID)
	if err != nil {
		apiresponses.RespondInternalError(c, "query entity audit trail", err, system.GetReqLogger(c, ac.log))
		return
	}

	apiresponses.RespondOK(c, records)
}

// handleGetActorTrail returns the most recent records of one actor.
func (ac AuditController) handleGetActorTrail(c *gin.Context) {
	actorID := c.Param("id")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			apiresponses.RespondBadRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	records, err := ac.audit.GetByActor(c.Request.Context(), actorID, limit)
	if err != nil {
		apiresponses.RespondInternalError(c, "query actor audit trail", err, system.GetReqLogger(c, ac.log))
		return
	}

	apiresponses.RespondOK(c, records)
}

// RecordsPage is the paged response of the audit record listing.
type RecordsPage struct {
	Records  []audit.Record `json:"records"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
}

// handleGetRecords returns one filtered page of audit records, newest first.
func (ac AuditController) handleGetRecords(c *gin.Context) {
	filter := audit.RecordFilter{
		EntityName: c.Query("entity"),
		ActorID:    c.Query("actor"),
		Action:     audit.Action(c.Query("action")),
	}

	var err error
	if filter.From, err = parseTimeQuery(c, "from"); err != nil {
		apiresponses.RespondBadRequest(c, "from must be RFC 3339")
		return
	}
	if filter.To, err = parseTimeQuery(c, "to"); err != nil {
		apiresponses.RespondBadRequest(c, "to must be RFC 3339")
		return
	}
	if filter.Page, err = parseIntQuery(c, "page"); err != nil {
		apiresponses.RespondBadRequest(c, "page must be a positive integer")
		return
	}
	if filter.PageSize, err = parseIntQuery(c, "pageSize"); err != nil {
		apiresponses.RespondBadRequest(c, "pageSize must be a positive integer")
		return
	}

	records, total, err := ac.audit.GetPaged(c.Request.Context(), filter)
	if err != nil {
		apiresponses.RespondInternalError(c, "query audit records", err, system.GetReqLogger(c, ac.log))
		return
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 20
	}

	apiresponses.RespondOK(c, RecordsPage{
		Records:  records,
		Total:    total,
		Page:     page,
		PageSize: size,
	})
}

func parseTimeQuery(c *gin.Context, key string) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func parseIntQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, strconv.ErrSyntax
	}
	return parsed, nil
}
