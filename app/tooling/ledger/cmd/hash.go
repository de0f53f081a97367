package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/signature"
	"github.com/spf13/cobra"
)

var (
	index    uint64
	prevHash string
	nonce    uint64
)

// hashCmd represents the hash command
var hashCmd = &cobra.Command{
	Use:   "hash <timestamp> <json payload>",
	Short: "Print the digest of a block built from the arguments.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var payload any
		if err := json.Unmarshal([]byte(args[1]), &payload); err != nil {
			return fmt.Errorf("payload is not valid json: %w", err)
		}

		hasher, err := signature.ParseHasher(hasherName)
		if err != nil {
			return err
		}

		b := database.NewBlock(index, args[0], payload, prevHash)
		b.Nonce = nonce
		b.UseHasher(hasher)

		fmt.Fprintln(cmd.OutOrStdout(), b.Hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashCmd)
	hashCmd.Flags().Uint64VarP(&index, "index", "i", 0, "Index of the block.")
	hashCmd.Flags().StringVarP(&prevHash, "prev", "p", signature.ZeroHash, "Previous block hash.")
	hashCmd.Flags().Uint64VarP(&nonce, "nonce", "n", 0, "Nonce of the block.")
}
