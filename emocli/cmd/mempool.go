package cmd

import (
    "fmt"
    "os"
    "encoding/json"
    "github.com/spf13/cobra"
    "emocli/api"
)

var mempoolCmd = &cobra.Command{
    Use:   "mempool",
    Short: "Query the current mempool contents",
    Run: func(cmd *cobra.Command, args []string) {
        txs, err := api.GetMempool()
        if err != nil {
            fmt.Println("Failed to fetch mempool:", err)
            os.Exit(1)
        }
        output, _ := cmd.Flags().GetString("output")
        if output == "json" {
            b, _ := json.MarshalIndent(txs, "", "  ")
            fmt.Println(string(b))
        } else {
            fmt.Printf("%d transactions in mempool:\n", len(txs))
            for i, tx := range txs {
                fmt.Printf("%d. %s | %s -> %s | amount %d | fee %d\n", i+1, tx.Type, tx.From, tx.To, tx.Amount, tx.Fee)
            }
        }
    },
}

func init() {
    rootCmd.AddCommand(mempoolCmd)
    mempoolCmd.Flags().StringP("output", "o", "plain", "Output format: plain|json")
}
