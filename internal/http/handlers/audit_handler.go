// README: Audit trail read handler.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fleetops/internal/modules/audit"
)

type AuditHandler struct {
	store *audit.Store
}

func NewAuditHandler(store *audit.Store) *AuditHandler {
	return &AuditHandler{store: store}
}

func (h *AuditHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.store.List(c.Request.Context(), audit.Filter{
		Entity:   c.Query("entity"),
		EntityID: c.Query("entityId"),
		Limit:    limit,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
