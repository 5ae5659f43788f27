package cmd

import (
	"fmt"
	"os"
	"github.com/spf13/cobra"
	"emocli/api"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a pre-signed transfer to the node",
	Long: `Submit a signed transfer transaction to the node's mempool.

The CLI never holds private keys: sign the transfer first with the gentx
tool from the node repository, then submit the resulting JSON file here.
The node verifies the signature and that the sender can cover amount
plus fee before admitting it.`,
	Example: `  emocli submit --file signed_tx.json`,
	Run: func(cmd *cobra.Command, args []string) {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			fmt.Println("Error: --file is required (a signed transfer JSON, see gentx)")
			cmd.Usage()
			os.Exit(1)
		}
		rawTx, err := os.ReadFile(file)
		if err != nil {
			fmt.Printf("Error reading %s: %v\n", file, err)
			os.Exit(1)
		}
		receipt, err := api.SubmitTransfer(rawTx)
		if err != nil {
			fmt.Println("Submission failed:", err)
			os.Exit(1)
		}
		fmt.Printf("Transfer submitted: %s\nTxID: %s\n", receipt.Result, receipt.TxID)
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringP("file", "f", "", "Path to a signed transfer JSON file (required)")
}
