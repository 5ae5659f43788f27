package cmd

import (
    "fmt"
    "os"
    "github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
    Use:   "emocli",
    Short: "EmoChain Blockchain CLI",
    Long:  "A command-line tool for managing and interacting with EmoChain blockchain nodes.",
}

func Execute() {
    if err := rootCmd.Execute(); err != nil {
        fmt.Println(err)
        os.Exit(1)
    }
}
