// Package chain is the append-only, hash-linked audit log of settled
// transfers. Every block commits to its predecessor's hash, so editing
// any sealed entry breaks verification from that block onwards.
package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tishajain880/Chronobank/internal/ledger"
	"github.com/tishajain880/Chronobank/internal/timevalue"
)

// GenesisPreviousHash is the sentinel previous hash of the first block.
const GenesisPreviousHash = "1"

// Entry is one transaction inside a block. Fields are declared in key
// order so the JSON form is canonical.
type Entry struct {
	Amount    string `json:"amount"`
	Kind      string `json:"kind"`
	Receiver  string `json:"receiver"`
	Sender    string `json:"sender"`
	Timestamp int64  `json:"timestamp"`
}

func NewEntry(sender, receiver string, amount timevalue.Value, kind string, at time.Time) Entry {
	return Entry{
		Amount:    amount.String(),
		Kind:      kind,
		Receiver:  receiver,
		Sender:    sender,
		Timestamp: at.UnixNano(),
	}
}

// Hash is the hex SHA-256 of the entry's canonical JSON.
func (e Entry) Hash() string {
	b, _ := json.Marshal(e)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

type Block struct {
	Hash         string  `json:"hash"`
	Index        int     `json:"index"`
	PreviousHash string  `json:"previous_hash"`
	Timestamp    int64   `json:"timestamp"`
	Transactions []Entry `json:"transactions"`
}

// ComputeHash digests the block with its hash field blanked.
func (b Block) ComputeHash() string {
	b.Hash = ""
	if b.Transactions == nil {
		b.Transactions = []Entry{}
	}
	raw, _ := json.Marshal(b)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func genesis() Block {
	b := Block{Index: 1, PreviousHash: GenesisPreviousHash, Transactions: []Entry{}}
	b.Hash = b.ComputeHash()
	return b
}

// Chain holds sealed blocks and the pending entry buffer. One mutex
// guards both; appends are strictly serial.
type Chain struct {
	mu      sync.Mutex
	blocks  []Block
	pending []Entry
	now     func() time.Time
}

// New returns a chain holding only the genesis block.
func New() *Chain {
	return &Chain{blocks: []Block{genesis()}, now: time.Now}
}

// Load rebuilds a chain from persisted blocks (genesis excluded) and
// verifies it.
func Load(blocks []Block) (*Chain, error) {
	c := New()
	c.blocks = append(c.blocks, blocks...)
	if err := c.VerifyErr(); err != nil {
		return nil, err
	}
	return c, nil
}

// AddTransaction buffers an entry and returns the index of the block that
// will contain it.
func (c *Chain) AddTransaction(sender, receiver string, amount timevalue.Value, kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, NewEntry(sender, receiver, amount, kind, c.now()))
	return c.blocks[len(c.blocks)-1].Index + 1
}

// SealBlock moves the pending buffer into a new block.
func (c *Chain) SealBlock() Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.next(c.pending)
	c.blocks = append(c.blocks, b)
	c.pending = nil
	return b
}

func (c *Chain) next(entries []Entry) Block {
	prev := c.blocks[len(c.blocks)-1]
	txs := make([]Entry, len(entries))
	copy(txs, entries)
	b := Block{
		Index:        prev.Index + 1,
		PreviousHash: prev.Hash,
		Timestamp:    c.now().UnixNano(),
		Transactions: txs,
	}
	b.Hash = b.ComputeHash()
	return b
}

// Commit seals entries into a block and calls persist while still holding
// the append lock. The block joins the chain only if persist succeeds, so
// the in-memory chain never runs ahead of storage. The pending buffer is
// left untouched.
func (c *Chain) Commit(entries []Entry, persist func(Block) error) (Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.next(entries)
	if persist != nil {
		if err := persist(b); err != nil {
			return Block{}, err
		}
	}
	c.blocks = append(c.blocks, b)
	return b, nil
}

// Verify reports whether every hash and link in the chain checks out.
func (c *Chain) Verify() bool { return c.VerifyErr() == nil }

// VerifyErr names the first bad block.
func (c *Chain) VerifyErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return verify(c.blocks)
}

func verify(blocks []Block) error {
	for i, b := range blocks {
		if b.ComputeHash() != b.Hash {
			return fmt.Errorf("block %d: hash mismatch: %w", b.Index, ledger.ErrIntegrityViolation)
		}
		if i == 0 {
			if b.PreviousHash != GenesisPreviousHash {
				return fmt.Errorf("genesis block: bad previous hash: %w", ledger.ErrIntegrityViolation)
			}
			continue
		}
		prev := blocks[i-1]
		if b.PreviousHash != prev.Hash {
			return fmt.Errorf("block %d: previous hash does not match block %d: %w", b.Index, prev.Index, ledger.ErrIntegrityViolation)
		}
		if b.Index != prev.Index+1 {
			return fmt.Errorf("block %d follows block %d: %w", b.Index, prev.Index, ledger.ErrIntegrityViolation)
		}
	}
	return nil
}

// Blocks returns a copy of the sealed blocks, genesis first.
func (c *Chain) Blocks() []Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Block, len(c.blocks))
	copy(out, c.blocks)
	return out
}

func (c *Chain) Last() Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocks[len(c.blocks)-1]
}

func (c *Chain) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
