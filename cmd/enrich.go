package main

import (
	"os"

	"github.com/spf13/cobra"
)

var enrichConversationID string

var enrichCmd = &cobra.Command{
	Use:   "enrich <cnpj>",
	Short: "Enrich a single CNPJ",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initAgent(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		resp, err := env.Service.Enrich(ctx, args[0], enrichConversationID)
		if err != nil {
			return err
		}
		return writeOutput(os.Stdout, outputFormat, resp)
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichConversationID, "conversation", "", "conversation ID to attach to the audit record")
	rootCmd.AddCommand(enrichCmd)
}
