// Package database handles the in memory chain of blocks, the mining of new
// blocks, and the validation of the chain's integrity.
package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/signature"
)

// Set of errors returned by the chain.
var (
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	ErrEmptyChain        = errors.New("chain is empty")
	ErrHashMismatch      = errors.New("block hash does not match its fields")
	ErrBrokenLink        = errors.New("previous block hash does not match previous block")
	ErrDifficultyNotMet  = errors.New("block hash does not meet difficulty")
	ErrBlockNotFound     = errors.New("block does not exist")
	ErrChainBusy         = errors.New("chain is busy mining")
)

// Genesis values used to construct the first block in every chain.
const (
	GenesisTimeStamp = "01/01/2018"
	GenesisPayload   = "Genesis"
)

// ValidationError identifies the block that failed validation.
type ValidationError struct {
	Index int
	Err   error
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	return fmt.Sprintf("block %d invalid: %s", ve.Index, ve.Err)
}

// Unwrap provides access to the underlying validation failure.
func (ve *ValidationError) Unwrap() error {
	return ve.Err
}

// =============================================================================

// Config represents the configuration required to construct a chain.
type Config struct {
	Difficulty  int
	Hasher      signature.Hasher
	MaxAttempts uint64
	EvHandler   func(v string, args ...any)
	Recorder    Recorder
}

// Recorder receives the outcome of chain operations. The metrics package
// provides a prometheus implementation.
type Recorder interface {
	BlockAppended(length int, attempts uint64, duration time.Duration)
	MiningFailed()
	Validated(valid bool)
}

// Chain manages the ordered set of blocks anchored by the genesis block.
type Chain struct {
	mu sync.RWMutex

	blocks      []*Block
	difficulty  uint
	hasher      signature.Hasher
	maxAttempts uint64
	evHandler   func(v string, args ...any)
	recorder    Recorder
}

// New constructs a chain holding only the genesis block. The genesis block
// is not mined.
func New(cfg Config) (*Chain, error) {
	if cfg.Difficulty < 0 || cfg.Difficulty > signature.HashLength {
		return nil, fmt.Errorf("%w: %d: must be between 0 and %d", ErrInvalidDifficulty, cfg.Difficulty, signature.HashLength)
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = signature.SHA256
	}

	ev := cfg.EvHandler
	if ev == nil {
		ev = func(string, ...any) {}
	}

	genesis := Block{
		Index:         0,
		TimeStamp:     GenesisTimeStamp,
		Payload:       GenesisPayload,
		PrevBlockHash: signature.ZeroHash,
		hasher:        hasher,
	}
	genesis.Hash = genesis.ComputeHash()

	c := Chain{
		blocks:      []*Block{&genesis},
		difficulty:  uint(cfg.Difficulty),
		hasher:      hasher,
		maxAttempts: cfg.MaxAttempts,
		evHandler:   ev,
		recorder:    cfg.Recorder,
	}

	ev("database: New: genesis: blk[%s]: difficulty[%d]", genesis.Hash, c.difficulty)

	return &c, nil
}

// Difficulty returns the number of leading zeros every mined block needs.
func (c *Chain) Difficulty() uint {
	return c.difficulty
}

// Length returns the number of blocks in the chain, including genesis.
func (c *Chain) Length() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.blocks)
}

// Latest returns the last block in the chain.
func (c *Chain) Latest() (*Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.latest()
}

// Block returns the block at the specified position. The block is shared
// with the chain, so changing its fields outside of Append is tampering
// that Validate will detect.
func (c *Chain) Block(index int) (*Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if index < 0 || index >= len(c.blocks) {
		return nil, fmt.Errorf("%w: %d", ErrBlockNotFound, index)
	}

	return c.blocks[index], nil
}

// Blocks returns a copy of every block in the chain.
func (c *Chain) Blocks() []Block {
	c.mu.RLock()
	defer c.mu.RUnlock()

	blocks := make([]Block, len(c.blocks))
	for i, b := range c.blocks {
		blocks[i] = *b
	}

	return blocks
}

// Append links the block to the latest block, mines it using the chain's
// difficulty, and adds it to the end of the chain. The block's index is
// not checked against its position. If mining fails the chain is left
// unchanged.
func (c *Chain) Append(ctx context.Context, b *Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.appendBlock(ctx, b)
}

// AppendPayload constructs a block for the payload positioned at the end of
// the chain and appends it. Constructing and appending happen under the same
// lock so concurrent callers always get sequential indexes.
func (c *Chain) AppendPayload(ctx context.Context, timeStamp string, payload any) (*Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := NewBlock(uint64(len(c.blocks)), timeStamp, payload)
	if err := c.appendBlock(ctx, b); err != nil {
		return nil, err
	}

	return b, nil
}

// Validate walks the chain checking every block's hash against its fields,
// the link to its predecessor, and the difficulty of its hash. The genesis
// block is only checked for consistency. Validation never mines or changes
// any block.
func (c *Chain) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	err := c.validate()
	if c.recorder != nil {
		c.recorder.Validated(err == nil)
	}

	return err
}

// StatusCheck validates the chain without waiting on a mining operation. If
// a block is being mined ErrChainBusy is returned right away.
func (c *Chain) StatusCheck() error {
	if !c.mu.TryRLock() {
		return ErrChainBusy
	}
	defer c.mu.RUnlock()

	return c.validate()
}

// IsValid reports whether the chain passes validation.
func (c *Chain) IsValid() bool {
	return c.Validate() == nil
}

// ForEach returns an iterator to walk through all the blocks starting
// with the genesis block.
func (c *Chain) ForEach() *Iterator {
	return &Iterator{chain: c}
}

// Dump writes a canonical indented JSON rendering of the chain.
func (c *Chain) Dump(w io.Writer) error {
	data, err := c.marshal()
	if err != nil {
		return err
	}

	_, err = w.Write(append(data, '\n'))
	return err
}

// String implements the fmt.Stringer interface.
func (c *Chain) String() string {
	data, err := c.marshal()
	if err != nil {
		return fmt.Sprintf("chain: %s", err)
	}

	return string(data)
}

// =============================================================================

func (c *Chain) latest() (*Block, error) {
	if len(c.blocks) == 0 {
		return nil, ErrEmptyChain
	}

	return c.blocks[len(c.blocks)-1], nil
}

func (c *Chain) appendBlock(ctx context.Context, b *Block) error {
	latest, err := c.latest()
	if err != nil {
		return err
	}

	c.evHandler("database: Append: blk[%d]: prevBlk[%s]", b.Index, latest.Hash)

	b.PrevBlockHash = latest.Hash
	b.hasher = c.hasher
	start := b.Nonce

	t := time.Now()
	if err := b.Mine(ctx, c.difficulty, MineOptions{MaxAttempts: c.maxAttempts}, c.evHandler); err != nil {
		if c.recorder != nil {
			c.recorder.MiningFailed()
		}
		return err
	}

	c.blocks = append(c.blocks, b)

	if c.recorder != nil {
		c.recorder.BlockAppended(len(c.blocks), b.Nonce-start, time.Since(t))
	}

	return nil
}

func (c *Chain) validate() error {
	if len(c.blocks) == 0 {
		return ErrEmptyChain
	}

	c.evHandler("database: Validate: started: blocks[%d]", len(c.blocks))

	if !c.blocks[0].IsConsistent() {
		c.evHandler("database: Validate: blk[0]: genesis hash mismatch")
		return &ValidationError{Index: 0, Err: ErrHashMismatch}
	}

	for i := 1; i < len(c.blocks); i++ {
		current := c.blocks[i]
		previous := c.blocks[i-1]

		if !current.IsConsistent() {
			c.evHandler("database: Validate: blk[%d]: hash mismatch", i)
			return &ValidationError{Index: i, Err: ErrHashMismatch}
		}

		if current.PrevBlockHash != previous.Hash {
			c.evHandler("database: Validate: blk[%d]: broken link", i)
			return &ValidationError{Index: i, Err: ErrBrokenLink}
		}

		if !signature.IsHashSolved(c.difficulty, current.Hash) {
			c.evHandler("database: Validate: blk[%d]: difficulty not met", i)
			return &ValidationError{Index: i, Err: ErrDifficultyNotMet}
		}
	}

	c.evHandler("database: Validate: completed: valid")

	return nil
}

func (c *Chain) marshal() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc := struct {
		Chain      []*Block `json:"chain"`
		Difficulty uint     `json:"difficulty"`
	}{
		Chain:      c.blocks,
		Difficulty: c.difficulty,
	}

	data, err := signature.Canonical(doc)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "    "); err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}
