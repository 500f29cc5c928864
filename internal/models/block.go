package models

// BlockRecord is the persisted form of a sealed audit chain block.
// Timestamp is Unix nanoseconds so the hashed form survives a round trip.
// Transactions holds the canonical JSON array of entries.
type BlockRecord struct {
	Index        int    `gorm:"primaryKey;autoIncrement:false;column:block_index"`
	Timestamp    int64  `gorm:"not null"`
	PreviousHash string `gorm:"size:64;not null"`
	Hash         string `gorm:"size:64;uniqueIndex;not null"`
	Transactions string `gorm:"type:text;not null"`
}
