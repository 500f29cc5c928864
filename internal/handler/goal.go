package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tishajain880/Chronobank/internal/goal"
	"github.com/tishajain880/Chronobank/internal/middleware"
	"github.com/tishajain880/Chronobank/internal/models"
	"github.com/tishajain880/Chronobank/internal/timevalue"
	"github.com/tishajain880/Chronobank/internal/util"
)

// GoalHandler runs goal commands through the undo manager of the
// caller's session.
type GoalHandler struct {
	Service  *goal.Service
	Sessions *goal.Sessions
}

func NewGoalHandler(svc *goal.Service, sessions *goal.Sessions) *GoalHandler {
	return &GoalHandler{Service: svc, Sessions: sessions}
}

type createGoalReq struct {
	Title  string `json:"title" binding:"required"`
	Amount string `json:"amount"`
}

type renameGoalReq struct {
	Title string `json:"title" binding:"required"`
}

func (h *GoalHandler) manager(c *gin.Context) *goal.Manager {
	return h.Sessions.Get(middleware.SessionID(c), middleware.SessionExpiry(c))
}

func goalView(g *models.TimeGoal) gin.H {
	return gin.H{
		"id":          g.ID,
		"title":       g.Title,
		"saved":       timevalue.FromMinutes(g.SavedMinutes),
		"saved_hours": g.SavedHours().StringFixed(2),
		"created_at":  g.CreatedAt,
	}
}

func (h *GoalHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	goals, err := h.Service.List(c.Request.Context(), user.ID)
	if err != nil {
		util.ErrorFrom(c, err)
		return
	}
	items := make([]gin.H, 0, len(goals))
	for i := range goals {
		items = append(items, goalView(&goals[i]))
	}
	undo, redo := h.manager(c).Depth()
	util.Success(c, util.Response{"items": items, "undo": undo, "redo": redo})
}

func (h *GoalHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req createGoalReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid parameters")
		return
	}
	if err := util.ValidateTitle(req.Title); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}
	amount := timevalue.Zero
	if req.Amount != "" {
		v, err := timevalue.ParseAmount(req.Amount)
		if err != nil {
			util.ErrorFrom(c, err)
			return
		}
		amount = v
	}
	g, err := h.Service.Create(c.Request.Context(), h.manager(c), user.ID, strings.TrimSpace(req.Title), amount)
	if err != nil {
		util.ErrorFrom(c, err)
		return
	}
	util.Success(c, util.Response{"goal": goalView(g)})
}

func (h *GoalHandler) Allocate(c *gin.Context) {
	h.move(c, h.Service.Allocate)
}

func (h *GoalHandler) Withdraw(c *gin.Context) {
	h.move(c, h.Service.Withdraw)
}

type moveFunc func(ctx context.Context, m *goal.Manager, userID, goalID uint, amount timevalue.Value) (*models.TimeGoal, error)

func (h *GoalHandler) move(c *gin.Context, fn moveFunc) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req amountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid parameters")
		return
	}
	amount, err := timevalue.ParseAmount(req.Amount)
	if err != nil {
		util.ErrorFrom(c, err)
		return
	}
	g, err := fn(c.Request.Context(), h.manager(c), user.ID, id, amount)
	if err != nil {
		util.ErrorFrom(c, err)
		return
	}
	util.Success(c, util.Response{"goal": goalView(g)})
}

func (h *GoalHandler) Rename(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req renameGoalReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid parameters")
		return
	}
	if err := util.ValidateTitle(req.Title); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}
	g, err := h.Service.Rename(c.Request.Context(), user.ID, id, strings.TrimSpace(req.Title))
	if err != nil {
		util.ErrorFrom(c, err)
		return
	}
	util.Success(c, util.Response{"goal": goalView(g)})
}

func (h *GoalHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Service.Delete(c.Request.Context(), h.manager(c), user.ID, id); err != nil {
		util.ErrorFrom(c, err)
		return
	}
	util.Success(c, util.Response{"message": "goal deleted"})
}

func (h *GoalHandler) History(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	rows, err := h.Service.History(c.Request.Context(), user.ID, id)
	if err != nil {
		util.ErrorFrom(c, err)
		return
	}
	util.Success(c, util.Response{"items": rows})
}

func (h *GoalHandler) Undo(c *gin.Context) {
	h.replay(c, h.Service.Undo)
}

func (h *GoalHandler) Redo(c *gin.Context) {
	h.replay(c, h.Service.Redo)
}

// replay reports the command that was undone or redone; "command" is
// null when the stack was empty.
func (h *GoalHandler) replay(c *gin.Context, fn func(context.Context, *goal.Manager) (goal.Command, error)) {
	if _, ok := currentUser(c); !ok {
		return
	}
	m := h.manager(c)
	cmd, err := fn(c.Request.Context(), m)
	if err != nil {
		util.ErrorFrom(c, err)
		return
	}
	var desc interface{}
	if cmd != nil {
		desc = cmd.String()
	}
	undo, redo := m.Depth()
	util.Success(c, util.Response{"command": desc, "undo": undo, "redo": redo})
}
