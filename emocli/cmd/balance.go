package cmd

import (
	"fmt"
	"os"
	"github.com/spf13/cobra"
	"emocli/api"
)

var balanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "Query the ledger balance of an address",
	Args:  cobra.ExactArgs(1),
	Example: `  emocli balance emo1a4f...`,
	Run: func(cmd *cobra.Command, args []string) {
		bal, err := api.GetBalance(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Address: %s\nBalance: %d\n", bal.Address, bal.Balance)
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}
