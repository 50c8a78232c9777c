package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/yungbote/chartmotion-backend/internal/platform/envutil"
)

var (
	jsonOut bool

	bold = color.New(color.Bold).SprintFunc()
	ok   = color.New(color.FgGreen).SprintFunc()
	warn = color.New(color.FgYellow).SprintFunc()
	dim  = color.New(color.Faint).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:           "chartmotion",
	Short:         "chartmotion turns datasets and chat messages into rendered chart animations",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnv()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print JSON instead of text")
	rootCmd.AddCommand(serveCmd, classifyCmd, profileCmd, templatesCmd, tokenCmd)
}

// loadEnv reads ENV_FILE (default .env). A missing default file is fine.
func loadEnv() error {
	path := envutil.String("ENV_FILE", "")
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}
