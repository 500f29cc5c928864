package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tishajain880/Chronobank/internal/chain"
	"github.com/tishajain880/Chronobank/internal/config"
	"github.com/tishajain880/Chronobank/internal/export"
	"github.com/tishajain880/Chronobank/internal/goal"
	"github.com/tishajain880/Chronobank/internal/ledger/ledgertest"
	"github.com/tishajain880/Chronobank/internal/loan"
	"github.com/tishajain880/Chronobank/internal/logger"
	"github.com/tishajain880/Chronobank/internal/models"
	"github.com/tishajain880/Chronobank/internal/notify"
	"github.com/tishajain880/Chronobank/internal/transfer"
)

const password = "Secret123"

type apiEnv struct {
	t      *testing.T
	r      *gin.Engine
	db     *gorm.DB
	alerts *recorder
}

type recorder struct {
	mu     sync.Mutex
	alerts []notify.Alert
}

func (r *recorder) Notify(_ context.Context, a notify.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, a := range r.alerts {
		out = append(out, a.Kind)
	}
	return out
}

type envelope struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func newAPI(t *testing.T) *apiEnv {
	t.Helper()
	db, store := ledgertest.Open(t)
	cfg := config.Default()
	cfg.Server.Mode = gin.TestMode
	cfg.Export.Dir = t.TempDir()

	log := logger.Nop()
	c := chain.New()
	repo := chain.NewGormRepository(db)
	transfers := transfer.NewEngine(store, c, repo, cfg.Ledger, log)
	loans := loan.NewService(store, cfg.Loan, log)
	verifier := chain.NewVerifier(c, repo, log)
	alerts := &recorder{}

	svc := Services{
		Store:     store,
		Transfers: transfers,
		Goals:     goal.NewService(store, log),
		Sessions:  goal.NewSessions(goal.DefaultDepth),
		Loans:     loans,
		Verifier:  verifier,
		Exporter:  export.NewExporter(db, c, cfg.Export.Dir),
		Monitor:   notify.NewMonitor(store, loans, transfers, verifier, notify.LogNotifier{Log: log}, cfg.Alert, log),
		Notifier:  alerts,
	}
	return &apiEnv{t: t, r: SetupRouter(cfg, svc, log), db: db, alerts: alerts}
}

func (e *apiEnv) raw(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func (e *apiEnv) do(method, path, token string, body interface{}) (int, envelope) {
	e.t.Helper()
	w := e.raw(method, path, token, body)
	var env envelope
	require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

// register creates a user and returns their savings account number.
func (e *apiEnv) register(name, initial string) string {
	e.t.Helper()
	code, env := e.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"username": name, "password": password, "confirm_password": password, "initial_balance": initial,
	})
	require.Equal(e.t, http.StatusOK, code, env.Message)
	return env.Data["account"].(map[string]interface{})["AccountNumber"].(string)
}

func (e *apiEnv) login(name string) string {
	e.t.Helper()
	code, env := e.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": name, "password": password})
	require.Equal(e.t, http.StatusOK, code, env.Message)
	return env.Data["token"].(string)
}

func (e *apiEnv) total(token string) string {
	e.t.Helper()
	code, env := e.do(http.MethodGet, "/api/me", token, nil)
	require.Equal(e.t, http.StatusOK, code)
	return env.Data["user"].(map[string]interface{})["total_balance"].(string)
}

func TestRegisterLoginMe(t *testing.T) {
	api := newAPI(t)
	api.register("alice", "5:00")

	code, env := api.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "ALICE", "password": password, "confirm_password": password,
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "taken")

	code, _ = api.do(http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	tok := api.login("alice")
	assert.Equal(t, "5:00", api.total(tok))
}

func TestLoginLockout(t *testing.T) {
	api := newAPI(t)
	api.register("carol", "")

	for i := 0; i < 5; i++ {
		code, _ := api.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "carol", "password": "Wrong1234"})
		require.Equal(t, http.StatusUnauthorized, code)
	}
	code, env := api.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "carol", "password": password})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Contains(t, env.Message, "locked")
}

func TestLogoutRevokesSession(t *testing.T) {
	api := newAPI(t)
	api.register("dave", "1:00")
	tok := api.login("dave")

	code, _ := api.do(http.MethodPost, "/api/auth/logout", tok, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = api.do(http.MethodGet, "/api/me", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAccountErrorsMapToStatus(t *testing.T) {
	api := newAPI(t)
	acc := api.register("erin", "1:00")
	tok := api.login("erin")

	code, env := api.do(http.MethodPost, "/api/accounts/"+acc+"/withdraw", tok, gin.H{"amount": "2:00"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, 40901, env.Code)

	code, _ = api.do(http.MethodPost, "/api/accounts/"+acc+"/deposit", tok, gin.H{"amount": "soon"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(http.MethodPost, "/api/accounts/00000000000/deposit", tok, gin.H{"amount": "1:00"})
	assert.Equal(t, http.StatusNotFound, code)

	code, env = api.do(http.MethodPost, "/api/accounts/"+acc+"/deposit", tok, gin.H{"amount": "1.5"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "2:30", env.Data["account"].(map[string]interface{})["Balance"])

	code, env = api.do(http.MethodPost, "/api/accounts", tok, gin.H{"account_type": "Investment", "initial_balance": "0:30"})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, "3:00", api.total(tok))
}

func TestTransferAndChainVerify(t *testing.T) {
	api := newAPI(t)
	aliceAcc := api.register("alice", "5:00")
	bobAcc := api.register("bob", "1:00")
	alice := api.login("alice")
	bob := api.login("bob")

	code, env := api.do(http.MethodPost, "/api/transfers", alice, gin.H{
		"sender_account": aliceAcc, "receiver_username": "bob", "receiver_account": bobAcc, "amount": "2:00",
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	tr := env.Data["transfer"].(map[string]interface{})
	assert.Equal(t, "2:08", tr["adjustment"].(map[string]interface{})["final"])
	assert.EqualValues(t, 2, tr["block_index"])

	assert.Equal(t, "2:52", api.total(alice))
	assert.Equal(t, "3:08", api.total(bob))

	code, env = api.do(http.MethodPost, "/api/transfers", alice, gin.H{
		"sender_account": aliceAcc, "receiver_username": "bob", "receiver_account": bobAcc, "amount": "9:00",
	})
	assert.Equal(t, http.StatusConflict, code, env.Message)

	code, env = api.do(http.MethodGet, "/api/chain/verify", bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, env.Data["valid"])
	assert.EqualValues(t, 2, env.Data["length"])

	code, env = api.do(http.MethodGet, "/api/transfers", bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, env.Data["total"])
	assert.Empty(t, api.alerts.kinds())
}

func TestChainVerifyAlertsOnTamper(t *testing.T) {
	api := newAPI(t)
	aliceAcc := api.register("alice", "5:00")
	bobAcc := api.register("bob", "1:00")
	alice := api.login("alice")

	code, env := api.do(http.MethodPost, "/api/transfers", alice, gin.H{
		"sender_account": aliceAcc, "receiver_username": "bob", "receiver_account": bobAcc, "amount": "1:00",
	})
	require.Equal(t, http.StatusOK, code, env.Message)

	require.NoError(t, api.db.Model(&models.BlockRecord{}).Where("block_index = ?", 2).
		Update("hash", strings.Repeat("0", 64)).Error)

	code, env = api.do(http.MethodGet, "/api/chain/verify", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, env.Data["valid"])
	assert.NotEmpty(t, env.Data["error"])
	assert.Equal(t, []string{notify.KindIntegrity}, api.alerts.kinds())
}

func TestGoalUndoIsPerSession(t *testing.T) {
	api := newAPI(t)
	api.register("fay", "10:00")
	first := api.login("fay")
	second := api.login("fay")

	code, env := api.do(http.MethodPost, "/api/goals", first, gin.H{"title": "trip", "amount": "2:00"})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, "2:00", env.Data["goal"].(map[string]interface{})["saved"])
	assert.Equal(t, "8:00", api.total(first))

	// the other session has nothing to undo
	code, env = api.do(http.MethodPost, "/api/goals/undo", second, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, env.Data["command"])

	code, env = api.do(http.MethodPost, "/api/goals/undo", first, nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotNil(t, env.Data["command"])
	assert.EqualValues(t, 1, env.Data["redo"])
	assert.Equal(t, "10:00", api.total(first))

	code, _ = api.do(http.MethodPost, "/api/goals/redo", first, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "8:00", api.total(first))

	code, _ = api.do(http.MethodPost, "/api/goals", first, gin.H{"title": "too much", "amount": "50:00"})
	assert.Equal(t, http.StatusConflict, code)
}

func TestLoanApplyAndQuote(t *testing.T) {
	api := newAPI(t)
	acc := api.register("gus", "1:00")
	tok := api.login("gus")

	code, env := api.do(http.MethodPost, "/api/loans", tok, gin.H{"account_number": acc, "hours": 300, "strategy": "fixed"})
	require.Equal(t, http.StatusOK, code, env.Message)
	l := env.Data["loan"].(map[string]interface{})
	assert.Equal(t, "Approved", l["Status"])
	assert.Equal(t, "301:00", api.total(tok))

	id := jsonNumber(l["LoanID"])
	code, env = api.do(http.MethodGet, "/api/loans/"+id+"/quote", tok, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.NotEmpty(t, env.Data["quote"].(map[string]interface{})["total"])

	code, _ = api.do(http.MethodPost, "/api/loans", tok, gin.H{"account_number": acc, "hours": 1500, "strategy": "fixed"})
	assert.Equal(t, http.StatusConflict, code)
}

func jsonNumber(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestExportAndLogs(t *testing.T) {
	api := newAPI(t)
	api.register("hal", "3:00")
	tok := api.login("hal")

	w := api.raw(http.MethodGet, "/api/export/csv?token="+tok, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte{0xEF, 0xBB, 0xBF}))

	w = api.raw(http.MethodGet, "/api/export/xlsx", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotZero(t, w.Body.Len())

	code, env := api.do(http.MethodGet, "/api/logs", tok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, env.Data["total"])

	code, env = api.do(http.MethodGet, "/api/alerts", tok, nil)
	require.Equal(t, http.StatusOK, code)
	// 3:00 is under the low-balance threshold
	assert.Len(t, env.Data["items"], 1)
}
