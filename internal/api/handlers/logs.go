package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"supik-server/internal/audit"
)

// LogHandler exposes the audit log. Admin only.
type LogHandler struct {
	audit *audit.Service
}

func NewLogHandler(audit *audit.Service) *LogHandler {
	return &LogHandler{audit: audit}
}

// List accepts account_id, action, entity, from, to (RFC 3339), limit and offset.
func (h *LogHandler) List(c *gin.Context) {
	var f audit.Filter
	if v := c.Query("account_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid account_id"})
			return
		}
		f.AccountID = uint(id)
	}
	f.Action = c.Query("action")
	f.Entity = c.Query("entity")

	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		v := c.Query(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + p.name + ", expected RFC 3339"})
			return
		}
		*p.dst = t
	}
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))
	if f.Offset < 0 {
		f.Offset = 0
	}

	logs, total, err := h.audit.Query(c.Request.Context(), f)
	if err != nil {
		respondDBError(c, err, "Log")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": logs, "total": total})
}
