package database_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/signature"
	"golang.org/x/sync/errgroup"
)

func newChain(t *testing.T, difficulty int, payloads ...any) *database.Chain {
	t.Helper()

	chain, err := database.New(database.Config{Difficulty: difficulty})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a chain: %v", failed, err)
	}

	for i, payload := range payloads {
		b := database.NewBlock(uint64(i+1), fmt.Sprintf("0%d/01/2018", i+2), payload)
		if err := chain.Append(context.Background(), b); err != nil {
			t.Fatalf("\t%s\tShould be able to append block %d: %v", failed, i+1, err)
		}
	}

	return chain
}

// =============================================================================

func Test_New(t *testing.T) {
	type table struct {
		name       string
		difficulty int
		err        error
	}

	tt := []table{
		{name: "zero", difficulty: 0},
		{name: "default", difficulty: 3},
		{name: "max", difficulty: signature.HashLength},
		{name: "negative", difficulty: -1, err: database.ErrInvalidDifficulty},
		{name: "unsatisfiable", difficulty: signature.HashLength + 1, err: database.ErrInvalidDifficulty},
	}

	t.Log("Given the need to construct chains.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen using difficulty %d.", testID, tst.difficulty)
				{
					chain, err := database.New(database.Config{Difficulty: tst.difficulty})
					if tst.err != nil {
						if !errors.Is(err, tst.err) {
							t.Fatalf("\t%s\tTest %d:\tShould reject the difficulty: %v", failed, testID, err)
						}
						t.Logf("\t%s\tTest %d:\tShould reject the difficulty.", success, testID)
						return
					}

					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to construct a chain: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to construct a chain.", success, testID)

					if chain.Length() != 1 {
						t.Fatalf("\t%s\tTest %d:\tShould only hold the genesis block: %d", failed, testID, chain.Length())
					}
					t.Logf("\t%s\tTest %d:\tShould only hold the genesis block.", success, testID)

					genesis, err := chain.Latest()
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to get the latest block: %v", failed, testID, err)
					}

					if genesis.Index != 0 || genesis.Nonce != 0 || genesis.PrevBlockHash != signature.ZeroHash {
						t.Fatalf("\t%s\tTest %d:\tShould have an unmined genesis block: %+v", failed, testID, genesis)
					}
					t.Logf("\t%s\tTest %d:\tShould have an unmined genesis block.", success, testID)

					if !genesis.IsConsistent() {
						t.Fatalf("\t%s\tTest %d:\tShould have a consistent genesis block.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould have a consistent genesis block.", success, testID)

					if !chain.IsValid() {
						t.Fatalf("\t%s\tTest %d:\tShould be valid after construction: %v", failed, testID, chain.Validate())
					}
					t.Logf("\t%s\tTest %d:\tShould be valid after construction.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_Append(t *testing.T) {
	t.Log("Given the need to append blocks to a chain.")
	{
		t.Logf("\tTest 0:\tWhen appending a sequence of blocks.")
		{
			chain := newChain(t, 2)

			for i := 1; i <= 10; i++ {
				prev, err := chain.Latest()
				if err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to get the latest block: %v", failed, err)
				}

				b := database.NewBlock(uint64(i), "01/01/2018", fmt.Sprintf("Block %d", i))
				if err := chain.Append(context.Background(), b); err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to append block %d: %v", failed, i, err)
				}

				if b.PrevBlockHash != prev.Hash {
					t.Fatalf("\t%s\tTest 0:\tShould link block %d to its predecessor.", failed, i)
				}

				if signature.LeadingZeros(b.Hash) < 2 {
					t.Fatalf("\t%s\tTest 0:\tShould mine block %d: %s", failed, i, b.Hash)
				}

				if err := chain.Validate(); err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be valid after appending block %d: %v", failed, i, err)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould link, mine and validate every block.", success)

			if chain.Length() != 11 {
				t.Fatalf("\t%s\tTest 0:\tShould have 11 blocks: %d", failed, chain.Length())
			}
			t.Logf("\t%s\tTest 0:\tShould have 11 blocks.", success)
		}

		t.Logf("\tTest 1:\tWhen mining exhausts its budget.")
		{
			chain, err := database.New(database.Config{Difficulty: signature.HashLength, MaxAttempts: 5})
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to construct a chain: %v", failed, err)
			}

			b := database.NewBlock(1, "02/01/2018", "Block 2")
			if err := chain.Append(context.Background(), b); !errors.Is(err, database.ErrMiningTimeout) {
				t.Fatalf("\t%s\tTest 1:\tShould get a mining timeout: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould get a mining timeout.", success)

			if chain.Length() != 1 || !chain.IsValid() {
				t.Fatalf("\t%s\tTest 1:\tShould leave the chain unchanged.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould leave the chain unchanged.", success)
		}

		t.Logf("\tTest 2:\tWhen the genesis block is checked against a high difficulty.")
		{
			chain := newChain(t, 5)

			genesis, err := chain.Block(0)
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to get the genesis block: %v", failed, err)
			}

			if !genesis.IsConsistent() || !chain.IsValid() {
				t.Fatalf("\t%s\tTest 2:\tShould not require the genesis block to meet difficulty.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould not require the genesis block to meet difficulty.", success)
		}
	}
}

func Test_Tamper(t *testing.T) {
	type table struct {
		name       string
		difficulty int
	}

	tt := []table{
		{name: "no-work", difficulty: 0},
		{name: "work", difficulty: 2},
	}

	t.Log("Given the need to detect tampering with a chain.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen tampering with block 1 at difficulty %d.", testID, tst.difficulty)
				{
					chain := newChain(t, tst.difficulty, "X", "Y")

					if !chain.IsValid() {
						t.Fatalf("\t%s\tTest %d:\tShould be valid before tampering: %v", failed, testID, chain.Validate())
					}
					t.Logf("\t%s\tTest %d:\tShould be valid before tampering.", success, testID)

					b1, err := chain.Block(1)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to get block 1: %v", failed, testID, err)
					}

					b1.Payload = "Z"

					err = chain.Validate()
					if !errors.Is(err, database.ErrHashMismatch) {
						t.Fatalf("\t%s\tTest %d:\tShould detect the changed payload: %v", failed, testID, err)
					}

					var ve *database.ValidationError
					if !errors.As(err, &ve) || ve.Index != 1 {
						t.Fatalf("\t%s\tTest %d:\tShould report block 1: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould detect the changed payload at block 1.", success, testID)

					b1.Hash = b1.ComputeHash()
					if !b1.IsConsistent() {
						t.Fatalf("\t%s\tTest %d:\tShould make block 1 self consistent.", failed, testID)
					}

					if chain.IsValid() {
						t.Fatalf("\t%s\tTest %d:\tShould still be invalid after recomputing the hash.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould still be invalid after recomputing the hash.", success, testID)

					if tst.difficulty == 0 {
						err := chain.Validate()
						if !errors.Is(err, database.ErrBrokenLink) || !errors.As(err, &ve) || ve.Index != 2 {
							t.Fatalf("\t%s\tTest %d:\tShould detect the broken link at block 2: %v", failed, testID, err)
						}
						t.Logf("\t%s\tTest %d:\tShould detect the broken link at block 2.", success, testID)
					}
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_ValidateIdempotent(t *testing.T) {
	t.Log("Given the need to validate without changing the chain.")
	{
		chain := newChain(t, 2, "X", "Y", map[string]any{"amount": 10})
		before := chain.Blocks()

		for i := 0; i < 3; i++ {
			if !chain.IsValid() {
				t.Fatalf("\t%s\tShould be valid on call %d: %v", failed, i, chain.Validate())
			}
		}
		t.Logf("\t%s\tShould be valid on every call.", success)

		after := chain.Blocks()
		for i := range before {
			if before[i].Hash != after[i].Hash || before[i].Nonce != after[i].Nonce || before[i].PrevBlockHash != after[i].PrevBlockHash {
				t.Fatalf("\t%s\tShould not change block %d.", failed, i)
			}
		}
		t.Logf("\t%s\tShould not change any block.", success)
	}
}

func Test_Hasher(t *testing.T) {
	t.Log("Given the need to secure a chain with different hashers.")
	{
		sha, err := database.New(database.Config{Difficulty: 1})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a sha256 chain: %v", failed, err)
		}

		keccak, err := database.New(database.Config{Difficulty: 1, Hasher: signature.Keccak256})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a keccak256 chain: %v", failed, err)
		}

		g1, _ := sha.Latest()
		g2, _ := keccak.Latest()
		if g1.Hash == g2.Hash {
			t.Fatalf("\t%s\tShould produce different genesis hashes.", failed)
		}
		t.Logf("\t%s\tShould produce different genesis hashes.", success)

		b := database.NewBlock(1, "02/01/2018", "Block 2")
		if err := keccak.Append(context.Background(), b); err != nil {
			t.Fatalf("\t%s\tShould be able to append to a keccak256 chain: %v", failed, err)
		}

		if b.Hash != signature.Keccak256([]byte(fmt.Sprintf("1%s02/01/2018\"Block 2\"%d", g2.Hash, b.Nonce))) {
			t.Fatalf("\t%s\tShould hash the block with keccak256.", failed)
		}
		t.Logf("\t%s\tShould hash the block with keccak256.", success)

		if !keccak.IsValid() {
			t.Fatalf("\t%s\tShould be valid: %v", failed, keccak.Validate())
		}
		t.Logf("\t%s\tShould be valid.", success)
	}
}

func Test_Inspection(t *testing.T) {
	t.Log("Given the need to inspect a chain.")
	{
		chain := newChain(t, 1, "X", map[string]any{"b": 2, "a": 1})

		var count int
		iter := chain.ForEach()
		for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
			if err != nil {
				t.Fatalf("\t%s\tShould be able to iterate: %v", failed, err)
			}
			if block.Index != uint64(count) {
				t.Fatalf("\t%s\tShould iterate in order: got %d, exp %d", failed, block.Index, count)
			}
			count++
		}

		if count != 3 {
			t.Fatalf("\t%s\tShould iterate over every block: %d", failed, count)
		}
		t.Logf("\t%s\tShould iterate over every block.", success)

		var buf bytes.Buffer
		if err := chain.Dump(&buf); err != nil {
			t.Fatalf("\t%s\tShould be able to dump the chain: %v", failed, err)
		}

		if buf.String() != chain.String()+"\n" {
			t.Fatalf("\t%s\tShould render the same dump every time.", failed)
		}
		t.Logf("\t%s\tShould render the same dump every time.", success)

		var doc struct {
			Chain []struct {
				Index   uint64 `json:"index"`
				Hash    string `json:"hash"`
				Payload any    `json:"payload"`
			} `json:"chain"`
			Difficulty uint `json:"difficulty"`
		}
		if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
			t.Fatalf("\t%s\tShould dump valid JSON: %v", failed, err)
		}

		if len(doc.Chain) != 3 || doc.Difficulty != 1 {
			t.Fatalf("\t%s\tShould dump every block and the difficulty: %+v", failed, doc)
		}
		t.Logf("\t%s\tShould dump every block and the difficulty.", success)

		if !bytes.Contains(buf.Bytes(), []byte(`"a": 1,`)) {
			t.Fatalf("\t%s\tShould order payload keys: %s", failed, buf.String())
		}
		t.Logf("\t%s\tShould order payload keys.", success)

		if _, err := chain.Block(3); !errors.Is(err, database.ErrBlockNotFound) {
			t.Fatalf("\t%s\tShould not find a block past the end: %v", failed, err)
		}
		t.Logf("\t%s\tShould not find a block past the end.", success)
	}
}

func Test_AppendPayload(t *testing.T) {
	t.Log("Given the need to append payloads at the end of a chain.")
	{
		chain := newChain(t, 1, "X")

		b, err := chain.AppendPayload(context.Background(), "03/01/2018", "Y")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to append the payload: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to append the payload.", success)

		if b.Index != 2 {
			t.Fatalf("\t%s\tShould position the block at index 2: %d", failed, b.Index)
		}
		t.Logf("\t%s\tShould position the block at index 2.", success)

		latest, _ := chain.Latest()
		if latest != b || !chain.IsValid() {
			t.Fatalf("\t%s\tShould store the block as the latest valid block.", failed)
		}
		t.Logf("\t%s\tShould store the block as the latest valid block.", success)
	}
}

func Test_EmptyChain(t *testing.T) {
	t.Log("Given the need to handle a chain with no blocks.")
	{
		var chain database.Chain

		if _, err := chain.Latest(); !errors.Is(err, database.ErrEmptyChain) {
			t.Fatalf("\t%s\tShould report an empty chain from Latest: %v", failed, err)
		}
		t.Logf("\t%s\tShould report an empty chain from Latest.", success)

		if err := chain.Append(context.Background(), database.NewBlock(1, "02/01/2018", "A")); !errors.Is(err, database.ErrEmptyChain) {
			t.Fatalf("\t%s\tShould refuse to append without a genesis block: %v", failed, err)
		}
		t.Logf("\t%s\tShould refuse to append without a genesis block.", success)

		if chain.IsValid() {
			t.Fatalf("\t%s\tShould not consider an empty chain valid.", failed)
		}
		t.Logf("\t%s\tShould not consider an empty chain valid.", success)
	}
}

func Test_AppendPayloadConcurrent(t *testing.T) {
	const goroutines = 20

	t.Log("Given the need to append payloads from many goroutines at once.")
	{
		chain := newChain(t, 1)

		var g errgroup.Group
		for w := range goroutines {
			g.Go(func() error {
				if _, err := chain.AppendPayload(context.Background(), "02/01/2018", map[string]any{"writer": w}); err != nil {
					return err
				}

				// Readers run alongside the writers.
				chain.IsValid()
				_ = chain.String()

				return nil
			})
		}

		if err := g.Wait(); err != nil {
			t.Fatalf("\t%s\tShould be able to append every payload: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to append every payload.", success)

		blocks := chain.Blocks()
		if len(blocks) != goroutines+1 {
			t.Fatalf("\t%s\tShould hold the genesis block plus %d blocks: %d", failed, goroutines, len(blocks))
		}
		t.Logf("\t%s\tShould hold the genesis block plus %d blocks.", success, goroutines)

		for i, b := range blocks {
			if b.Index != uint64(i) {
				t.Fatalf("\t%s\tShould position block %d at its index: %d", failed, i, b.Index)
			}
		}
		t.Logf("\t%s\tShould position every block at its index.", success)

		if !chain.IsValid() {
			t.Fatalf("\t%s\tShould leave the chain valid: %v", failed, chain.Validate())
		}
		t.Logf("\t%s\tShould leave the chain valid.", success)
	}
}

func Test_StatusCheck(t *testing.T) {
	t.Log("Given the need to check the chain without waiting on mining.")
	{
		started := make(chan struct{})
		var once sync.Once

		ev := func(v string, args ...any) {
			if strings.HasPrefix(v, "database: Mine: MINING: started") {
				once.Do(func() { close(started) })
			}
		}

		chain, err := database.New(database.Config{Difficulty: 64, EvHandler: ev})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a chain: %v", failed, err)
		}

		if err := chain.StatusCheck(); err != nil {
			t.Fatalf("\t%s\tShould report an idle chain as healthy: %v", failed, err)
		}
		t.Logf("\t%s\tShould report an idle chain as healthy.", success)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- chain.Append(ctx, database.NewBlock(1, "02/01/2018", "A"))
		}()

		<-started

		if err := chain.StatusCheck(); !errors.Is(err, database.ErrChainBusy) {
			t.Fatalf("\t%s\tShould report a mining chain as busy: %v", failed, err)
		}
		t.Logf("\t%s\tShould report a mining chain as busy.", success)

		cancel()
		if err := <-done; !errors.Is(err, database.ErrMiningTimeout) {
			t.Fatalf("\t%s\tShould stop mining once cancelled: %v", failed, err)
		}
		t.Logf("\t%s\tShould stop mining once cancelled.", success)

		if err := chain.StatusCheck(); err != nil {
			t.Fatalf("\t%s\tShould report the chain as healthy again: %v", failed, err)
		}
		t.Logf("\t%s\tShould report the chain as healthy again.", success)
	}
}
