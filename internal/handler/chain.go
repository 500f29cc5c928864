package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tishajain880/Chronobank/internal/chain"
	"github.com/tishajain880/Chronobank/internal/notify"
	"github.com/tishajain880/Chronobank/internal/util"
)

type ChainHandler struct {
	Verifier *chain.Verifier
	Notifier notify.Notifier
}

func NewChainHandler(v *chain.Verifier, n notify.Notifier) *ChainHandler {
	return &ChainHandler{Verifier: v, Notifier: n}
}

// Verify checks the in-memory chain and its stored copy. A broken chain
// is reported in the payload, not as a request failure, and raises an
// integrity alert.
func (h *ChainHandler) Verify(c *gin.Context) {
	err := h.Verifier.Check(c.Request.Context())
	last := h.Verifier.Chain().Last()
	resp := util.Response{
		"valid":  err == nil,
		"length": last.Index,
		"tip":    last.Hash,
	}
	if err != nil {
		resp["error"] = err.Error()
		if h.Notifier != nil {
			notify.ReportIntegrity(c.Request.Context(), h.Notifier, err)
		}
	}
	util.Success(c, resp)
}

// Blocks pages through sealed blocks, oldest first.
func (h *ChainHandler) Blocks(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if offset < 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid offset")
		return
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	blocks := h.Verifier.Chain().Blocks()
	total := len(blocks)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	util.Success(c, util.Response{"items": blocks[offset:end], "total": total})
}
