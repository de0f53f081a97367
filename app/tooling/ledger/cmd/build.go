package cmd

import (
	"fmt"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	blocks    int
	timeStamp string
	progress  bool
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Mine a chain of sample blocks and print it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		chain, err := newChain()
		if err != nil {
			return err
		}

		var bar *progressbar.ProgressBar
		if progress {
			bar = progressbar.NewOptions(
				blocks,
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetDescription("Mining blocks..."),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
			)
		}

		for i := 1; i <= blocks; i++ {
			b := database.NewBlock(uint64(i), timeStamp, fmt.Sprintf("Block %d", i))
			if err := chain.Append(cmd.Context(), b); err != nil {
				return fmt.Errorf("appending block %d: %w", i, err)
			}

			if bar != nil {
				if err := bar.Add(1); err != nil {
					return fmt.Errorf("updating progress: %w", err)
				}
			}
		}

		if bar != nil {
			if err := bar.Finish(); err != nil {
				return fmt.Errorf("finishing progress: %w", err)
			}
			fmt.Fprintln(cmd.ErrOrStderr())
		}

		if err := chain.Dump(cmd.OutOrStdout()); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\nIs the chain valid? : %v\n", chain.IsValid())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().IntVarP(&blocks, "blocks", "n", 100, "Number of blocks to mine after genesis.")
	buildCmd.Flags().StringVarP(&timeStamp, "timestamp", "t", "01/01/2018", "Timestamp stored in every block.")
	buildCmd.Flags().BoolVar(&progress, "progress", false, "Show a progress bar on stderr while mining.")
}
