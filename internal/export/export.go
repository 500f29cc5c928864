// Package export renders per-user statements and the audit chain as XLSX
// and CSV.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/tishajain880/Chronobank/internal/chain"
	"github.com/tishajain880/Chronobank/internal/models"
)

// Statement is everything exported for one user.
type Statement struct {
	User        models.User
	Accounts    []models.Account
	Transfers   []models.Transaction
	Goals       []models.TimeGoal
	GoalHistory []models.GoalTransaction
}

type Exporter struct {
	DB    *gorm.DB
	Chain *chain.Chain
	Dir   string
}

func NewExporter(db *gorm.DB, c *chain.Chain, dir string) *Exporter {
	return &Exporter{DB: db, Chain: c, Dir: dir}
}

func (e *Exporter) Load(ctx context.Context, userID uint) (*Statement, error) {
	db := e.DB.WithContext(ctx)
	st := &Statement{}
	if err := db.First(&st.User, userID).Error; err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := db.Where("user_id = ? AND is_deleted = ?", userID, false).Order("id ASC").Find(&st.Accounts).Error; err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	if err := db.Where("sender_id = ? OR receiver_id = ?", userID, userID).Order("timestamp DESC").Find(&st.Transfers).Error; err != nil {
		return nil, fmt.Errorf("load transfers: %w", err)
	}
	if err := db.Where("user_id = ?", userID).Order("id ASC").Find(&st.Goals).Error; err != nil {
		return nil, fmt.Errorf("load goals: %w", err)
	}
	if err := db.Where("user_id = ?", userID).Order("timestamp ASC").Find(&st.GoalHistory).Error; err != nil {
		return nil, fmt.Errorf("load goal history: %w", err)
	}
	return st, nil
}

func direction(t models.Transaction, userID uint) string {
	if t.SenderID == userID {
		return "sent"
	}
	return "received"
}

func transferRow(t models.Transaction, userID uint) []string {
	return []string{
		t.Timestamp.Format("2006-01-02 15:04:05"),
		direction(t, userID),
		t.SenderAccountNumber,
		t.ReceiverAccountNumber,
		t.TimeAmount.String(),
		t.Tax.String(),
		t.Bonus.String(),
		strconv.Itoa(t.BlockIndex),
		t.TxnHash,
	}
}

var transferHeader = []string{"Time", "Direction", "From", "To", "Settled", "Tax", "Bonus", "Block", "Hash"}

// WriteCSV writes the user's transfers followed by goal history.
func WriteCSV(w io.Writer, st *Statement) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(transferHeader); err != nil {
		return err
	}
	for _, t := range st.Transfers {
		if err := cw.Write(transferRow(t, st.User.ID)); err != nil {
			return err
		}
	}
	titles := goalTitles(st.Goals)
	_ = cw.Write(nil)
	_ = cw.Write([]string{"Time", "Goal", "Type", "Amount"})
	for _, g := range st.GoalHistory {
		if err := cw.Write(goalRow(g, titles)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func goalTitles(goals []models.TimeGoal) map[uint]string {
	m := make(map[uint]string, len(goals))
	for _, g := range goals {
		m[g.ID] = g.Title
	}
	return m
}

func goalRow(g models.GoalTransaction, titles map[uint]string) []string {
	title, ok := titles[g.GoalID]
	if !ok {
		title = fmt.Sprintf("#%d", g.GoalID)
	}
	return []string{
		g.Timestamp.Format("2006-01-02 15:04:05"),
		title,
		g.Type,
		fmt.Sprintf("%d:%02d", g.Minutes/60, g.Minutes%60),
	}
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return f.SetSheetRow(sheet, cell, &vals)
}

// WriteXLSX writes a workbook with Accounts, Transfers, Goals and Chain
// sheets. blocks may be nil to omit the chain sheet.
func WriteXLSX(w io.Writer, st *Statement, blocks []chain.Block) error {
	f := excelize.NewFile()
	defer f.Close()

	const accounts = "Accounts"
	if err := f.SetSheetName("Sheet1", accounts); err != nil {
		return err
	}
	if err := setRow(f, accounts, 1, []string{"Account", "Type", "Balance", "Hours", "Interest %", "Status"}); err != nil {
		return err
	}
	for i, a := range st.Accounts {
		if err := setRow(f, accounts, i+2, []string{
			a.AccountNumber, a.AccountType, a.Balance.String(), a.Balance.Hours().StringFixed(2),
			strconv.Itoa(a.InterestRate), a.AccountStatus,
		}); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(accounts, "A", "A", 16)

	const transfers = "Transfers"
	if _, err := f.NewSheet(transfers); err != nil {
		return err
	}
	if err := setRow(f, transfers, 1, transferHeader); err != nil {
		return err
	}
	for i, t := range st.Transfers {
		if err := setRow(f, transfers, i+2, transferRow(t, st.User.ID)); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(transfers, "A", "A", 20)
	_ = f.SetColWidth(transfers, "I", "I", 66)

	const goals = "Goals"
	if _, err := f.NewSheet(goals); err != nil {
		return err
	}
	if err := setRow(f, goals, 1, []string{"Time", "Goal", "Type", "Amount"}); err != nil {
		return err
	}
	titles := goalTitles(st.Goals)
	for i, g := range st.GoalHistory {
		if err := setRow(f, goals, i+2, goalRow(g, titles)); err != nil {
			return err
		}
	}

	if blocks != nil {
		const sheet = "Chain"
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
		if err := setRow(f, sheet, 1, []string{"Index", "Sealed", "Previous hash", "Hash", "Entries"}); err != nil {
			return err
		}
		for i, b := range blocks {
			if err := setRow(f, sheet, i+2, []string{
				strconv.Itoa(b.Index),
				time.Unix(0, b.Timestamp).Format(time.RFC3339),
				b.PreviousHash,
				b.Hash,
				strconv.Itoa(len(b.Transactions)),
			}); err != nil {
				return err
			}
		}
	}

	f.SetActiveSheet(0)
	_, err := f.WriteTo(w)
	return err
}

// Archive writes the user's workbook into e.Dir and returns its path.
func (e *Exporter) Archive(ctx context.Context, userID uint) (string, error) {
	st, err := e.Load(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(e.Dir, fmt.Sprintf("statement_%d_%s.xlsx", userID, time.Now().Format("20060102_150405")))
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer out.Close()
	var blocks []chain.Block
	if e.Chain != nil {
		blocks = e.Chain.Blocks()
	}
	if err := WriteXLSX(out, st, blocks); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
