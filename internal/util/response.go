package util

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tishajain880/Chronobank/internal/ledger"
)

// Response is the data payload of a success envelope.
type Response map[string]interface{}

const (
	CodeOK           = 0
	CodeInvalidParam = 40001
	CodeAuth         = 40101
	CodeNotFound     = 40401
	CodeConflict     = 40901
	CodeIntegrity    = 42201
	CodeServerErr    = 50001
)

// Success writes {"code":0,"data":...}.
func Success(c *gin.Context, data Response) {
	c.JSON(http.StatusOK, gin.H{
		"code": CodeOK,
		"data": data,
	})
}

// Error writes {"code":...,"message":...} with the given status.
func Error(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
	})
}

// ErrorFrom maps a ledger error to a status and envelope code. Internal
// errors are not echoed to the client.
func ErrorFrom(c *gin.Context, err error) {
	kind := ledger.KindOf(err)
	switch kind {
	case ledger.KindParse, ledger.KindBadAmount, ledger.KindSameAccount:
		Error(c, http.StatusBadRequest, CodeInvalidParam, err.Error())
	case ledger.KindNotFound:
		Error(c, http.StatusNotFound, CodeNotFound, err.Error())
	case ledger.KindInsufficient, ledger.KindInvalidState, ledger.KindLoanBlocked:
		Error(c, http.StatusConflict, CodeConflict, err.Error())
	case ledger.KindIntegrity:
		Error(c, http.StatusUnprocessableEntity, CodeIntegrity, err.Error())
	default:
		_ = c.Error(err)
		Error(c, http.StatusInternalServerError, CodeServerErr, "internal error")
	}
}
