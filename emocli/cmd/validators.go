package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"github.com/spf13/cobra"
	"emocli/api"
)

var validatorsCmd = &cobra.Command{
	Use:   "validators",
	Short: "List registered validators and the current consensus score",
	Run: func(cmd *cobra.Command, args []string) {
		set, err := api.GetValidators()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		output, _ := cmd.Flags().GetString("output")
		eligibleOnly, _ := cmd.Flags().GetBool("eligible")
		if eligibleOnly {
			filtered := set.Validators[:0]
			for _, v := range set.Validators {
				if v.Eligible {
					filtered = append(filtered, v)
				}
			}
			set.Validators = filtered
		}
		if output == "json" {
			b, _ := json.MarshalIndent(set, "", "  ")
			fmt.Println(string(b))
			return
		}
		fmt.Printf("%d validators (consensus score %.2f, spread %.2f):\n",
			len(set.Validators), set.ConsensusScore, set.ScoreSpread)
		for i, v := range set.Validators {
			state := "ineligible"
			if v.Eligible {
				state = "eligible"
			}
			fmt.Printf("%d. %s | %s | score %.1f | auth %.2f | stake %d | %s\n",
				i+1, v.ID, v.Address, v.EmotionalScore, v.Authenticity, v.Stake, state)
		}
	},
}

func init() {
	rootCmd.AddCommand(validatorsCmd)
	validatorsCmd.Flags().StringP("output", "o", "plain", "Output format: plain|json")
	validatorsCmd.Flags().Bool("eligible", false, "Show only validators eligible for selection")
}
