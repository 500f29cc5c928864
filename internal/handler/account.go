package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tishajain880/Chronobank/internal/ledger"
	"github.com/tishajain880/Chronobank/internal/timevalue"
	"github.com/tishajain880/Chronobank/internal/util"
)

// AccountHandler exposes account maintenance on the ledger store.
type AccountHandler struct {
	Store *ledger.Store
}

func NewAccountHandler(store *ledger.Store) *AccountHandler {
	return &AccountHandler{Store: store}
}

type openAccountReq struct {
	AccountType    string `json:"account_type" binding:"required"`
	InitialBalance string `json:"initial_balance"`
}

type amountReq struct {
	Amount string `json:"amount" binding:"required"`
}

type statusReq struct {
	Status string `json:"status" binding:"required"`
}

type moneyReq struct {
	AccountType string          `json:"account_type" binding:"required"`
	Money       decimal.Decimal `json:"money"`
}

func (h *AccountHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	accs, err := h.Store.Accounts(c.Request.Context(), user.ID)
	if err != nil {
		util.ErrorFrom(c, err)
		return
	}
	states := make(map[string]string, len(accs))
	for _, a := range accs {
		states[a.AccountNumber] = ledger.DescribeState(a.AccountStatus)
	}
	util.Success(c, util.Response{"items": accs, "states": states})
}

func (h *AccountHandler) Open(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req openAccountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid parameters")
		return
	}
	initial := timevalue.Zero
	if req.InitialBalance != "" {
		v, err := timevalue.ParseAmount(req.InitialBalance)
		if err != nil {
			util.ErrorFrom(c, err)
			return
		}
		initial = v
	}
	acc, err := h.Store.OpenAccount(c.Request.Context(), user.ID, req.AccountType, initial)
	if err != nil {
		util.ErrorFrom(c, err)
		return
	}
	util.Success(c, util.Response{"account": acc})
}

func (h *AccountHandler) bindAmount(c *gin.Context) (timevalue.Value, bool) {
	var req amountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid parameters")
		return timevalue.Zero, false
	}
	v, err := timevalue.ParseAmount(req.Amount)
	if err != nil {
		util.ErrorFrom(c, err)
		return timevalue.Zero, false
	}
	return v, true
}

func (h *AccountHandler) Deposit(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	amount, ok := h.bindAmount(c)
	if !ok {
		return
	}
	acc, err := h.Store.Deposit(c.Request.Context(), user.ID, c.Param("number"), amount)
	if err != nil {
		util.ErrorFrom(c, err)
		return
	}
	util.Success(c, util.Response{"account": acc})
}

func (h *AccountHandler) Withdraw(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	amount, ok := h.bindAmount(c)
	if !ok {
		return
	}
	acc, err := h.Store.Withdraw(c.Request.Context(), user.ID, c.Param("number"), amount)
	if err != nil {
		util.ErrorFrom(c, err)
		return
	}
	util.Success(c, util.Response{"account": acc})
}

func (h *AccountHandler) SetStatus(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid parameters")
		return
	}
	if err := h.Store.SetStatus(c.Request.Context(), user.ID, c.Param("number"), req.Status); err != nil {
		util.ErrorFrom(c, err)
		return
	}
	util.Success(c, util.Response{"status": req.Status, "description": ledger.DescribeState(req.Status)})
}

func (h *AccountHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.Store.SoftDeleteAccount(c.Request.Context(), user.ID, c.Param("number")); err != nil {
		util.ErrorFrom(c, err)
		return
	}
	util.Success(c, util.Response{"message": "account deleted"})
}

// DepositMoney and WithdrawMoney convert a money amount to time at the
// configured rate.
func (h *AccountHandler) DepositMoney(c *gin.Context) {
	h.money(c, true)
}

func (h *AccountHandler) WithdrawMoney(c *gin.Context) {
	h.money(c, false)
}

func (h *AccountHandler) money(c *gin.Context, deposit bool) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req moneyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid parameters")
		return
	}
	op := h.Store.WithdrawMoney
	if deposit {
		op = h.Store.DepositMoney
	}
	v, err := op(c.Request.Context(), user.ID, req.AccountType, req.Money)
	if err != nil {
		util.ErrorFrom(c, err)
		return
	}
	util.Success(c, util.Response{"money": req.Money.String(), "time": v})
}
