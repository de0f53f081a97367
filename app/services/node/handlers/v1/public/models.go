package public

import "github.com/ardanlabs/powledger/foundation/blockchain/database"

// appendRequest is the payload for adding a new block to the chain.
type appendRequest struct {
	TimeStamp string `json:"timestamp"`
	Payload   any    `json:"payload" validate:"required"`
}

type block struct {
	Index         uint64 `json:"index"`
	TimeStamp     string `json:"timestamp"`
	Payload       any    `json:"payload"`
	PrevBlockHash string `json:"prev_block_hash"`
	Hash          string `json:"hash"`
	Nonce         uint64 `json:"nonce"`
	Consistent    bool   `json:"consistent"`
}

func toBlock(b *database.Block) block {
	return block{
		Index:         b.Index,
		TimeStamp:     b.TimeStamp,
		Payload:       b.Payload,
		PrevBlockHash: b.PrevBlockHash,
		Hash:          b.Hash,
		Nonce:         b.Nonce,
		Consistent:    b.IsConsistent(),
	}
}

type validity struct {
	Valid  bool   `json:"valid"`
	Length int    `json:"length"`
	Index  *int   `json:"index,omitempty"`
	Reason string `json:"reason,omitempty"`
}
