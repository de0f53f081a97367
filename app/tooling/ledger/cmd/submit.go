package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var (
	nodeURL       string
	payloadJSON   string
	submitStamp   string
	submitTimeout time.Duration
)

// submitCmd represents the submit command
var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Send a payload to a running node to be mined into the chain.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var payload any
		dec := json.NewDecoder(strings.NewReader(payloadJSON))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			return fmt.Errorf("decoding payload: %w", err)
		}

		req := struct {
			TimeStamp string `json:"timestamp,omitempty"`
			Payload   any    `json:"payload"`
		}{
			TimeStamp: submitStamp,
			Payload:   payload,
		}

		var blk struct {
			Index uint64 `json:"index"`
			Hash  string `json:"hash"`
			Nonce uint64 `json:"nonce"`
		}
		var errResp struct {
			Error string `json:"error"`
		}

		resp, err := resty.New().
			SetTimeout(submitTimeout).
			R().
			SetContext(cmd.Context()).
			SetBody(req).
			SetResult(&blk).
			SetError(&errResp).
			Post(strings.TrimSuffix(nodeURL, "/") + "/v1/blocks")
		if err != nil {
			return fmt.Errorf("sending payload: %w", err)
		}

		if resp.IsError() {
			return fmt.Errorf("node responded %d: %s", resp.StatusCode(), errResp.Error)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "blk[%d]: hash[%s]: nonce[%d]\n", blk.Index, blk.Hash, blk.Nonce)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringVarP(&nodeURL, "node", "u", "http://localhost:8080", "Url of the node.")
	submitCmd.Flags().StringVarP(&payloadJSON, "payload", "p", "", "JSON payload to store in the block.")
	submitCmd.Flags().StringVarP(&submitStamp, "timestamp", "t", "", "Timestamp for the block, the node's clock when empty.")
	submitCmd.Flags().DurationVar(&submitTimeout, "timeout", time.Minute, "How long to wait for the node to mine the block.")
	submitCmd.MarkFlagRequired("payload")
}
