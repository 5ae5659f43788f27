package cmd

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"github.com/spf13/pflag"
	"github.com/spf13/cobra"
	"emocli/api"
)

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "Query a range of blocks with optional filters",
	Long: `Query blocks from the node's ranged /blocks endpoint.

Flags map directly to query parameters; only flags you set are sent, so
the node applies its own defaults for the rest.`,
	Example: `  emocli blocks --start 10 --end 20
  emocli blocks --validator emo1a4f... --limit 5
  emocli blocks --start 0 --limit 100 --output json`,
	Run: func(cmd *cobra.Command, args []string) {
		// Only flags the user actually set become query parameters.
		params := url.Values{}
		queryFlags := map[string]bool{"start": true, "end": true, "validator": true, "limit": true, "offset": true}
		cmd.Flags().Visit(func(f *pflag.Flag) {
			if queryFlags[f.Name] {
				params.Set(f.Name, f.Value.String())
			}
		})

		blocks, raw, err := api.GetBlocks(params.Encode())
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "json" {
			fmt.Println(strings.TrimSpace(string(raw)))
			return
		}
		fmt.Printf("%d blocks:\n", len(blocks))
		for _, b := range blocks {
			fmt.Printf("#%d | %s | proposer %s | score %.1f | %d txs | %s\n",
				b.Index, b.Timestamp, b.ValidatorAddress, b.ConsensusScore, len(b.Transactions), b.Hash)
		}
	},
}

func init() {
	rootCmd.AddCommand(blocksCmd)
	blocksCmd.Flags().Uint64("start", 0, "Start height (inclusive)")
	blocksCmd.Flags().Uint64("end", 0, "End height (inclusive, defaults to tip)")
	blocksCmd.Flags().String("validator", "", "Filter by proposer address")
	blocksCmd.Flags().Int("limit", 0, "Maximum blocks to return (node caps at 100)")
	blocksCmd.Flags().Uint64("offset", 0, "Skip this many heights from start")
	blocksCmd.Flags().StringP("output", "o", "plain", "Output format: plain|json")
}
