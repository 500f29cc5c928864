package chain

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/tishajain880/Chronobank/internal/models"
)

// GormRepository persists sealed blocks as models.BlockRecord rows.
type GormRepository struct {
	DB *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{DB: db}
}

func toRecord(b Block) (models.BlockRecord, error) {
	txs := b.Transactions
	if txs == nil {
		txs = []Entry{}
	}
	raw, err := json.Marshal(txs)
	if err != nil {
		return models.BlockRecord{}, fmt.Errorf("encode block %d: %w", b.Index, err)
	}
	return models.BlockRecord{
		Index:        b.Index,
		Timestamp:    b.Timestamp,
		PreviousHash: b.PreviousHash,
		Hash:         b.Hash,
		Transactions: string(raw),
	}, nil
}

func fromRecord(r models.BlockRecord) (Block, error) {
	var txs []Entry
	if err := json.Unmarshal([]byte(r.Transactions), &txs); err != nil {
		return Block{}, fmt.Errorf("decode block %d: %w", r.Index, err)
	}
	return Block{
		Index:        r.Index,
		Timestamp:    r.Timestamp,
		PreviousHash: r.PreviousHash,
		Hash:         r.Hash,
		Transactions: txs,
	}, nil
}

// Save writes b using tx, which is normally the caller's open ledger
// transaction. A nil tx writes through the repository's own handle.
func (r *GormRepository) Save(tx *gorm.DB, b Block) error {
	if tx == nil {
		tx = r.DB
	}
	rec, err := toRecord(b)
	if err != nil {
		return err
	}
	if err := tx.Create(&rec).Error; err != nil {
		return fmt.Errorf("save block %d: %w", b.Index, err)
	}
	return nil
}

// LoadAll returns every persisted block in index order.
func (r *GormRepository) LoadAll(ctx context.Context) ([]Block, error) {
	var recs []models.BlockRecord
	if err := r.DB.WithContext(ctx).Order("block_index ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}
	blocks := make([]Block, 0, len(recs))
	for _, rec := range recs {
		b, err := fromRecord(rec)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// Open loads and verifies the persisted chain.
func (r *GormRepository) Open(ctx context.Context) (*Chain, error) {
	blocks, err := r.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return Load(blocks)
}
