package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/tishajain880/Chronobank/internal/notify"
	"github.com/tishajain880/Chronobank/internal/util"
)

type AlertHandler struct {
	Monitor *notify.Monitor
}

func NewAlertHandler(m *notify.Monitor) *AlertHandler {
	return &AlertHandler{Monitor: m}
}

// List evaluates the alert conditions for the current user on demand.
func (h *AlertHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	alerts, err := h.Monitor.UserAlerts(c.Request.Context(), user.ID)
	if err != nil {
		util.ErrorFrom(c, err)
		return
	}
	util.Success(c, util.Response{"items": alerts})
}
