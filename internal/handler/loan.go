package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tishajain880/Chronobank/internal/loan"
	"github.com/tishajain880/Chronobank/internal/models"
	"github.com/tishajain880/Chronobank/internal/util"
)

type LoanHandler struct {
	Service *loan.Service
}

func NewLoanHandler(svc *loan.Service) *LoanHandler {
	return &LoanHandler{Service: svc}
}

type applyLoanReq struct {
	AccountNumber string `json:"account_number" binding:"required"`
	Hours         int64  `json:"hours" binding:"required"`
	Strategy      string `json:"strategy" binding:"required"`
}

func (h *LoanHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	loans, err := h.Service.List(c.Request.Context(), user.ID)
	if err != nil {
		util.ErrorFrom(c, err)
		return
	}
	util.Success(c, util.Response{"items": loans})
}

// Apply returns the stored loan even when it was Rejected; a blocked
// application is reported as a conflict.
func (h *LoanHandler) Apply(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req applyLoanReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid parameters")
		return
	}
	if err := util.ValidateLoanHours(req.Hours); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}
	l, err := h.Service.Apply(c.Request.Context(), user.ID, req.AccountNumber, req.Hours, req.Strategy)
	if err != nil {
		util.ErrorFrom(c, err)
		return
	}
	util.Success(c, util.Response{"loan": l})
}

func (h *LoanHandler) Repay(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	receipt, err := h.Service.Repay(c.Request.Context(), user.ID, id)
	if err != nil {
		util.ErrorFrom(c, err)
		return
	}
	util.Success(c, util.Response{"receipt": receipt})
}

func (h *LoanHandler) Quote(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	q, err := h.Service.Quote(c.Request.Context(), user.ID, id)
	if err != nil {
		util.ErrorFrom(c, err)
		return
	}
	util.Success(c, util.Response{"quote": q})
}

func (h *LoanHandler) Schedule(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	rows, err := h.Service.Schedule(c.Request.Context(), user.ID, id)
	if err != nil {
		util.ErrorFrom(c, err)
		return
	}
	paid := 0
	for _, r := range rows {
		if r.Status == models.RepaymentPaid {
			paid++
		}
	}
	util.Success(c, util.Response{"items": rows, "paid": paid, "remaining": len(rows) - paid})
}

