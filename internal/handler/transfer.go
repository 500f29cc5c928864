package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tishajain880/Chronobank/internal/transfer"
	"github.com/tishajain880/Chronobank/internal/util"
)

type TransferHandler struct {
	Engine *transfer.Engine
}

func NewTransferHandler(e *transfer.Engine) *TransferHandler {
	return &TransferHandler{Engine: e}
}

type transferReq struct {
	SenderAccount    string `json:"sender_account" binding:"required"`
	ReceiverUsername string `json:"receiver_username" binding:"required"`
	ReceiverAccount  string `json:"receiver_account" binding:"required"`
	Amount           string `json:"amount" binding:"required"`
}

func (h *TransferHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req transferReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid parameters")
		return
	}
	res, err := h.Engine.Transfer(c.Request.Context(), transfer.Request{
		SenderUserID:     user.ID,
		SenderAccount:    req.SenderAccount,
		ReceiverUsername: req.ReceiverUsername,
		ReceiverAccount:  req.ReceiverAccount,
		Amount:           req.Amount,
	})
	if err != nil {
		util.ErrorFrom(c, err)
		return
	}
	util.Success(c, util.Response{"transfer": res})
}

// List returns the user's sent and received transfers, newest first.
func (h *TransferHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := h.Engine.History(c.Request.Context(), user.ID, limit)
	if err != nil {
		util.ErrorFrom(c, err)
		return
	}
	util.Success(c, util.Response{"items": rows, "total": len(rows)})
}
