// Package cmd contains the ledger tooling commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/signature"
	"github.com/ardanlabs/powledger/foundation/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	difficulty int
	hasherName string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Build and inspect proof of work ledgers",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&difficulty, "difficulty", "d", 3, "Number of leading zeros a mined hash needs.")
	rootCmd.PersistentFlags().StringVar(&hasherName, "hasher", "sha256", "Digest used to hash blocks: sha256 or keccak256.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log mining events to stderr.")
}

// newChain constructs a chain using the persistent flags.
func newChain() (*database.Chain, error) {
	hasher, err := signature.ParseHasher(hasherName)
	if err != nil {
		return nil, err
	}

	cfg := database.Config{
		Difficulty: difficulty,
		Hasher:     hasher,
	}

	if verbose {
		log, err := logger.New("LEDGER", "stderr")
		if err != nil {
			return nil, fmt.Errorf("constructing logger: %w", err)
		}
		cfg.EvHandler = logger.EvHandler(log)
	} else {
		cfg.EvHandler = logger.EvHandler(zap.NewNop().Sugar())
	}

	return database.New(cfg)
}
