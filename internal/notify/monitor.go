package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tishajain880/Chronobank/internal/config"
	"github.com/tishajain880/Chronobank/internal/ledger"
	"github.com/tishajain880/Chronobank/internal/models"
	"github.com/tishajain880/Chronobank/internal/timevalue"
)

type LoanSource interface {
	DueWithin(ctx context.Context, d time.Duration) ([]models.Loan, error)
}

type TransferSource interface {
	LargerThan(ctx context.Context, threshold timevalue.Value, since time.Time) ([]models.Transaction, error)
}

type ChainChecker interface {
	Check(ctx context.Context) error
}

const loanDueWindow = 24 * time.Hour

// Monitor periodically scans the ledger and raises alerts. Each condition
// is reported once when it first appears.
type Monitor struct {
	store     *ledger.Store
	loans     LoanSource
	transfers TransferSource
	chain     ChainChecker
	notifier  Notifier
	cfg       config.AlertConfig
	log       zerolog.Logger
	now       func() time.Time

	mu        sync.Mutex
	low       map[uint]bool
	loansSeen map[uint]bool
	since     time.Time
	chainBad  bool
}

func NewMonitor(store *ledger.Store, loans LoanSource, transfers TransferSource, chain ChainChecker,
	notifier Notifier, cfg config.AlertConfig, log zerolog.Logger) *Monitor {
	return &Monitor{
		store:     store,
		loans:     loans,
		transfers: transfers,
		chain:     chain,
		notifier:  notifier,
		cfg:       cfg,
		log:       log.With().Str("component", "monitor").Logger(),
		now:       time.Now,
		low:       make(map[uint]bool),
		loansSeen: make(map[uint]bool),
		since:     time.Now(),
	}
}

// Run scans every cfg.Interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	interval := m.cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	m.log.Info().Dur("interval", interval).Msg("alert monitor started")
	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("alert monitor stopped")
			return
		case <-ticker.C:
			if n, err := m.Scan(ctx); err != nil {
				m.log.Error().Err(err).Msg("alert scan")
			} else if n > 0 {
				m.log.Info().Int("alerts", n).Msg("alert scan")
			}
		}
	}
}

// Scan runs one pass and returns how many alerts were raised.
func (m *Monitor) Scan(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var alerts []Alert
	var errs []error
	now := m.now()

	if a, err := m.scanBalances(ctx, now); err != nil {
		errs = append(errs, err)
	} else {
		alerts = append(alerts, a...)
	}
	if a, err := m.scanTransfers(ctx, now); err != nil {
		errs = append(errs, err)
	} else {
		alerts = append(alerts, a...)
	}
	if a, err := m.scanLoans(ctx, now); err != nil {
		errs = append(errs, err)
	} else {
		alerts = append(alerts, a...)
	}
	alerts = append(alerts, m.scanIntegrity(ctx, now)...)

	for _, a := range alerts {
		if err := m.notifier.Notify(ctx, a); err != nil {
			m.log.Warn().Err(err).Str("kind", a.Kind).Msg("alert delivery failed")
		}
	}
	return len(alerts), errors.Join(errs...)
}

func (m *Monitor) scanBalances(ctx context.Context, now time.Time) ([]Alert, error) {
	var users []models.User
	if err := m.store.DB().WithContext(ctx).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("scan balances: %w", err)
	}
	var out []Alert
	for _, u := range users {
		isLow := u.TotalBalanceMinutes < m.cfg.LowBalanceMinutes
		if isLow && !m.low[u.ID] {
			out = append(out, lowBalance(u, m.cfg.LowBalanceMinutes, now))
		}
		m.low[u.ID] = isLow
	}
	return out, nil
}

func lowBalance(u models.User, limit int64, now time.Time) Alert {
	return Alert{
		Kind:   KindLowBalance,
		UserID: u.ID,
		Message: fmt.Sprintf("balance %s is below %s",
			timevalue.FromMinutes(u.TotalBalanceMinutes), timevalue.FromMinutes(limit)),
		At: now,
	}
}

func (m *Monitor) scanTransfers(ctx context.Context, now time.Time) ([]Alert, error) {
	rows, err := m.transfers.LargerThan(ctx, timevalue.FromMinutes(m.cfg.SuspiciousTransferMinutes), m.since)
	if err != nil {
		return nil, err
	}
	m.since = now
	out := make([]Alert, 0, len(rows))
	for _, r := range rows {
		out = append(out, suspicious(r))
	}
	return out, nil
}

func suspicious(r models.Transaction) Alert {
	return Alert{
		Kind:   KindSuspiciousTransfer,
		UserID: r.SenderID,
		Message: fmt.Sprintf("transfer of %s from %s to %s (block %d)",
			r.TimeAmount, r.SenderAccountNumber, r.ReceiverAccountNumber, r.BlockIndex),
		At: r.Timestamp,
	}
}

func (m *Monitor) scanLoans(ctx context.Context, now time.Time) ([]Alert, error) {
	loans, err := m.loans.DueWithin(ctx, loanDueWindow)
	if err != nil {
		return nil, err
	}
	var out []Alert
	for _, l := range loans {
		if m.loansSeen[l.LoanID] {
			continue
		}
		m.loansSeen[l.LoanID] = true
		out = append(out, loanDue(l, now))
	}
	return out, nil
}

func loanDue(l models.Loan, now time.Time) Alert {
	return Alert{
		Kind:    KindLoanDue,
		UserID:  l.UserID,
		Message: fmt.Sprintf("loan %d of %dh is due %s", l.LoanID, l.LoanAmount, l.RepaymentDue.Format(time.RFC3339)),
		At:      now,
	}
}

// scanIntegrity reports aggregate drift on every pass and a broken chain
// once per breakage.
func (m *Monitor) scanIntegrity(ctx context.Context, now time.Time) []Alert {
	var out []Alert
	if err := m.store.CheckAll(ctx); err != nil {
		out = append(out, Alert{Kind: KindIntegrity, Message: err.Error(), At: now})
	}
	if m.chain != nil {
		err := m.chain.Check(ctx)
		if err != nil && !m.chainBad {
			out = append(out, Alert{Kind: KindIntegrity, Message: err.Error(), At: now})
		}
		m.chainBad = err != nil
	}
	return out
}

// UserAlerts computes the live alerts for one user without notifying.
func (m *Monitor) UserAlerts(ctx context.Context, userID uint) ([]Alert, error) {
	now := m.now()
	var u models.User
	if err := m.store.DB().WithContext(ctx).First(&u, userID).Error; err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	var out []Alert
	if u.TotalBalanceMinutes < m.cfg.LowBalanceMinutes {
		out = append(out, lowBalance(u, m.cfg.LowBalanceMinutes, now))
	}

	rows, err := m.transfers.LargerThan(ctx, timevalue.FromMinutes(m.cfg.SuspiciousTransferMinutes), now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if r.SenderID == userID || r.ReceiverID == userID {
			out = append(out, suspicious(r))
		}
	}

	loans, err := m.loans.DueWithin(ctx, loanDueWindow)
	if err != nil {
		return nil, err
	}
	for _, l := range loans {
		if l.UserID == userID {
			out = append(out, loanDue(l, now))
		}
	}
	return out, nil
}

// ReportIntegrity sends a violation found outside the periodic scan.
func ReportIntegrity(ctx context.Context, n Notifier, err error) {
	if err == nil || !errors.Is(err, ledger.ErrIntegrityViolation) {
		return
	}
	_ = n.Notify(ctx, Alert{Kind: KindIntegrity, Message: err.Error(), At: time.Now()})
}
