package notify

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tishajain880/Chronobank/internal/config"
	"github.com/tishajain880/Chronobank/internal/ledger"
	"github.com/tishajain880/Chronobank/internal/ledger/ledgertest"
	"github.com/tishajain880/Chronobank/internal/logger"
	"github.com/tishajain880/Chronobank/internal/models"
	"github.com/tishajain880/Chronobank/internal/timevalue"
)

var ctx = context.Background()

type recorder struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *recorder) Notify(_ context.Context, a Alert) error {
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

type fakeBot struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func TestTelegramNotifier(t *testing.T) {
	bot := &fakeBot{}
	n := &TelegramNotifier{bot: bot, chatID: 42}
	require.NoError(t, n.Notify(ctx, Alert{Kind: KindIntegrity, Message: "block 3: hash mismatch"}))
	require.Len(t, bot.sent, 1)
	msg := bot.sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Contains(t, msg.Text, "integrity_violation")
	assert.Contains(t, msg.Text, "block 3")

	bot.err = errors.New("network down")
	assert.Error(t, n.Notify(ctx, Alert{Kind: KindLowBalance}))
}

func TestMultiAndLog(t *testing.T) {
	buf := &bytes.Buffer{}
	rec := &recorder{}
	bad := &TelegramNotifier{bot: &fakeBot{err: errors.New("down")}}
	m := Multi{LogNotifier{Log: logger.NewWithWriter(buf)}, bad, rec}

	err := m.Notify(ctx, Alert{Kind: KindLowBalance, UserID: 7, Message: "low"})
	assert.Error(t, err)
	assert.Len(t, rec.alerts, 1, "one failing channel does not stop the others")
	assert.Contains(t, buf.String(), `"kind":"low_balance"`)
}

func TestReportIntegrity(t *testing.T) {
	rec := &recorder{}
	ReportIntegrity(ctx, rec, errors.New("unrelated"))
	ReportIntegrity(ctx, rec, nil)
	assert.Empty(t, rec.alerts)
	ReportIntegrity(ctx, rec, ledger.ErrIntegrityViolation)
	assert.Equal(t, []string{KindIntegrity}, rec.kinds())
}

type fakeLoans struct{ due []models.Loan }

func (f fakeLoans) DueWithin(context.Context, time.Duration) ([]models.Loan, error) { return f.due, nil }

type fakeTransfers struct{ rows []models.Transaction }

func (f *fakeTransfers) LargerThan(_ context.Context, th timevalue.Value, _ time.Time) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, r := range f.rows {
		if th.Less(r.TimeAmount) {
			out = append(out, r)
		}
	}
	f.rows = nil
	return out, nil
}

type fakeChain struct{ err error }

func (f *fakeChain) Check(context.Context) error { return f.err }

func TestMonitorScan(t *testing.T) {
	_, store := ledgertest.Open(t)
	poor, _ := ledgertest.User(t, store, "poor", "5:00")
	rich, _ := ledgertest.User(t, store, "rich", "50:00")

	transfers := &fakeTransfers{rows: []models.Transaction{
		{SenderID: rich.ID, ReceiverID: poor.ID, TimeAmount: timevalue.FromMinutes(91 * 60)},
		{SenderID: rich.ID, ReceiverID: poor.ID, TimeAmount: timevalue.FromMinutes(60)},
	}}
	loans := fakeLoans{due: []models.Loan{{LoanID: 1, UserID: rich.ID, LoanAmount: 10, RepaymentDue: time.Now().Add(time.Hour)}}}
	chk := &fakeChain{}
	rec := &recorder{}
	m := NewMonitor(store, loans, transfers, chk, rec, config.Default().Alert, logger.Nop())

	n, err := m.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.ElementsMatch(t, []string{KindLowBalance, KindSuspiciousTransfer, KindLoanDue}, rec.kinds())

	// nothing new: no repeats
	n, err = m.Scan(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	chk.err = ledger.ErrIntegrityViolation
	n, err = m.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, _ = m.Scan(ctx)
	assert.Zero(t, n, "a broken chain is reported once")

	alerts, err := m.UserAlerts(ctx, poor.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, KindLowBalance, alerts[0].Kind)
}

func TestMonitorReportsDrift(t *testing.T) {
	_, store := ledgertest.Open(t)
	u, _ := ledgertest.User(t, store, "alice", "50:00")
	require.NoError(t, store.DB().Model(&models.User{}).Where("id = ?", u.ID).
		Update("total_balance_minutes", 1).Error)

	rec := &recorder{}
	m := NewMonitor(store, fakeLoans{}, &fakeTransfers{}, nil, rec, config.Default().Alert, logger.Nop())
	_, err := m.Scan(ctx)
	require.NoError(t, err)
	assert.Contains(t, rec.kinds(), KindIntegrity)
}

func TestMonitorRunStops(t *testing.T) {
	_, store := ledgertest.Open(t)
	cfg := config.Default().Alert
	cfg.Interval = 10 * time.Millisecond
	m := NewMonitor(store, fakeLoans{}, &fakeTransfers{}, nil, &recorder{}, cfg, logger.Nop())

	c, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		m.Run(c)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}
