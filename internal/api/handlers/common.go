package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"supik-server/internal/audit"
	"supik-server/internal/auth"
	"supik-server/internal/logger"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// parseID reads a numeric route parameter and answers 400 when it is not one.
func parseID(c *gin.Context, param, what string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + what + " ID"})
		return 0, false
	}
	return uint(id), true
}

// paginate applies ?limit= and ?offset= to q.
func paginate(c *gin.Context, q *gorm.DB) *gorm.DB {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err := strconv.Atoi(c.Query("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return q.Limit(limit).Offset(offset)
}

// like adds a case-insensitive substring filter on column for ?param=.
func like(c *gin.Context, q *gorm.DB, param, column string) *gorm.DB {
	if v := c.Query(param); v != "" {
		return q.Where("LOWER("+column+") LIKE ?", "%"+strings.ToLower(v)+"%")
	}
	return q
}

// list counts the filtered query, then fetches one page into dest with the
// given associations preloaded.
func list(c *gin.Context, q *gorm.DB, dest any, preloads ...string) {
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		respondDBError(c, err, "Record")
		return
	}
	page := paginate(c, q)
	for _, p := range preloads {
		page = page.Preload(p)
	}
	if err := page.Find(dest).Error; err != nil {
		respondDBError(c, err, "Record")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": dest, "total": total})
}

// respondDBError maps gorm errors onto JSON answers.
func respondDBError(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
	case errors.Is(err, gorm.ErrDuplicatedKey):
		c.JSON(http.StatusConflict, gin.H{"error": what + " already exists"})
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		c.JSON(http.StatusConflict, gin.H{"error": what + " is still referenced"})
	default:
		logger.Error("database error", zap.String("entity", what), zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
	}
}

// recordAudit writes the audit entry for a mutation that already succeeded.
func recordAudit(c *gin.Context, svc *audit.Service, id *auth.Identity, action, entity string, entityID uint, payload any) {
	if svc == nil {
		return
	}
	var accountID uint
	if id != nil {
		accountID = id.AccountID
	}
	// Record logs and counts its own failures; the mutation stands either way.
	_ = svc.Record(c.Request.Context(), audit.Entry{
		AccountID: accountID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Payload:   payload,
	})
}

func validAccess(v int) bool {
	return v >= 0 && v <= 2
}

func boolFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}
