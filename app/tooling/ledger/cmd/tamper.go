package cmd

import (
	"fmt"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

// tamperCmd represents the tamper command
var tamperCmd = &cobra.Command{
	Use:   "tamper",
	Short: "Show how changing a mined block is detected.",
	RunE: func(cmd *cobra.Command, args []string) error {
		chain, err := newChain()
		if err != nil {
			return err
		}

		if err := chain.Append(cmd.Context(), database.NewBlock(1, "02/01/2018", "Block 2")); err != nil {
			return err
		}
		if err := chain.Append(cmd.Context(), database.NewBlock(2, "03/01/2018", "Block 3")); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if err := chain.Dump(out); err != nil {
			return err
		}
		report(cmd, "Is the chain currently valid?", chain)

		b, err := chain.Block(1)
		if err != nil {
			return err
		}

		b.Payload = "Breaking things"
		report(cmd, "After changing the payload of block 1?", chain)

		b.Hash = b.ComputeHash()
		report(cmd, "After recomputing the hash of block 1?", chain)

		return chain.Dump(out)
	},
}

func init() {
	rootCmd.AddCommand(tamperCmd)
}

func report(cmd *cobra.Command, question string, chain *database.Chain) {
	err := chain.Validate()
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s : false (%s)\n\n", question, err)
		return
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n%s : true\n\n", question)
}
