package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ardanlabs/powledger/foundation/blockchain/signature"
)

// ErrMiningTimeout is returned when mining is cancelled or exhausts its
// attempt budget before a solution is found.
var ErrMiningTimeout = errors.New("mining timeout")

// =============================================================================

// Block represents a single record in the chain. The hash seals the other
// fields and the nonce is discovered by the POW algorithm.
type Block struct {
	Index         uint64 `json:"index"`           // Position in the chain, informational only.
	TimeStamp     string `json:"timestamp"`       // Opaque creation marker.
	Payload       any    `json:"payload"`         // Caller data, hashed using its canonical encoding.
	PrevBlockHash string `json:"prev_block_hash"` // Hash of the previous block in the chain.
	Hash          string `json:"hash"`            // Digest over all the other fields.
	Nonce         uint64 `json:"nonce"`           // Value identified to solve the hash solution.

	hasher signature.Hasher
}

// NewBlock constructs a block with a zero nonce and a hash matching its
// initial fields. When no previous hash is provided the zero hash is used.
func NewBlock(index uint64, timeStamp string, payload any, prevBlockHash ...string) *Block {
	prev := signature.ZeroHash
	if len(prevBlockHash) > 0 {
		prev = prevBlockHash[0]
	}

	b := Block{
		Index:         index,
		TimeStamp:     timeStamp,
		Payload:       payload,
		PrevBlockHash: prev,
	}
	b.Hash = b.ComputeHash()

	return &b
}

// UseHasher changes the digest used by the block and reseals its hash.
// Append replaces the hasher with the chain's own.
func (b *Block) UseHasher(hasher signature.Hasher) {
	b.hasher = hasher
	b.Hash = b.ComputeHash()
}

// ComputeHash returns the digest of the block's current fields. The stored
// Hash field is not consulted or changed. A payload the canonical encoding
// rejects is hashed using its raw %v rendering.
func (b *Block) ComputeHash() string {
	payload, err := signature.Canonical(b.Payload)
	if err != nil {
		payload = []byte(fmt.Sprintf("%v", b.Payload))
	}

	var sb strings.Builder
	sb.WriteString(strconv.FormatUint(b.Index, 10))
	sb.WriteString(b.PrevBlockHash)
	sb.WriteString(b.TimeStamp)
	sb.Write(payload)
	sb.WriteString(strconv.FormatUint(b.Nonce, 10))

	return b.hashFunc()([]byte(sb.String()))
}

// IsConsistent reports whether the stored hash matches a fresh digest of
// the block's fields.
func (b *Block) IsConsistent() bool {
	return b.Hash == b.ComputeHash()
}

// MineOptions bounds a mining operation. A zero MaxAttempts means the
// search is only bounded by the context.
type MineOptions struct {
	MaxAttempts uint64
}

// Mine does the work of finding a nonce that produces a hash with at least
// difficulty leading zeros. Pointer semantics are being used since a nonce
// is being discovered.
func (b *Block) Mine(ctx context.Context, difficulty uint, opts MineOptions, ev func(v string, args ...any)) error {
	if ev == nil {
		ev = func(string, ...any) {}
	}

	ev("database: Mine: MINING: started: blk[%d]: difficulty[%d]", b.Index, difficulty)
	defer ev("database: Mine: MINING: completed: blk[%d]", b.Index)

	b.Hash = b.ComputeHash()

	var attempts uint64
	for !signature.IsHashSolved(difficulty, b.Hash) {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: Mine: MINING: attempts[%d]", attempts)
		}

		// Did we timeout trying to solve the problem.
		if err := ctx.Err(); err != nil {
			ev("database: Mine: MINING: CANCELLED: attempts[%d]", attempts)
			return fmt.Errorf("%w: blk[%d]: %w", ErrMiningTimeout, b.Index, err)
		}

		if opts.MaxAttempts > 0 && attempts > opts.MaxAttempts {
			ev("database: Mine: MINING: EXHAUSTED: attempts[%d]", opts.MaxAttempts)
			return fmt.Errorf("%w: blk[%d]: exceeded %d attempts", ErrMiningTimeout, b.Index, opts.MaxAttempts)
		}

		b.Nonce++
		b.Hash = b.ComputeHash()
	}

	ev("database: Mine: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: attempts[%d]", b.PrevBlockHash, b.Hash, attempts)

	return nil
}

// hashFunc returns the hasher for this block, defaulting to sha256.
func (b *Block) hashFunc() signature.Hasher {
	if b.hasher == nil {
		return signature.SHA256
	}

	return b.hasher
}
