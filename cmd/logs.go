package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/cnpj-enrich/internal/model"
	"github.com/sells-group/cnpj-enrich/internal/store"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Query the audit trail",
	Long:  "Commands for listing execution records, search records and conversation messages.",
}

// openLogStore validates the store settings and opens the audit store.
func openLogStore(cmd *cobra.Command) (store.Store, error) {
	if err := cfg.Validate("logs"); err != nil {
		return nil, err
	}
	return store.Open(cmd.Context(), cfg.Store)
}

// -- logs executions --

var logsExecutionsCmd = &cobra.Command{
	Use:   "executions",
	Short: "List enrich and chat execution records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openLogStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		requestID, _ := cmd.Flags().GetString("request-id")
		taxID, _ := cmd.Flags().GetString("cnpj")
		conv, _ := cmd.Flags().GetString("conversation")
		op, _ := cmd.Flags().GetString("operation")
		limit, _ := cmd.Flags().GetInt("limit")

		recs, err := st.ListExecutions(cmd.Context(), store.ExecutionFilter{
			RequestID:      requestID,
			TaxID:          model.CleanTaxID(taxID),
			ConversationID: conv,
			Operation:      model.Operation(op),
			Limit:          limit,
		})
		if err != nil {
			return eris.Wrap(err, "logs executions")
		}
		return writeOutput(os.Stdout, outputFormat, nonNil(recs))
	},
}

// -- logs searches --

var logsSearchesCmd = &cobra.Command{
	Use:   "searches",
	Short: "List web-search records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openLogStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		requestID, _ := cmd.Flags().GetString("request-id")
		conv, _ := cmd.Flags().GetString("conversation")
		term, _ := cmd.Flags().GetString("term")
		limit, _ := cmd.Flags().GetInt("limit")

		recs, err := st.ListSearches(cmd.Context(), store.SearchFilter{
			RequestID:      requestID,
			ConversationID: conv,
			Term:           term,
			Limit:          limit,
		})
		if err != nil {
			return eris.Wrap(err, "logs searches")
		}
		return writeOutput(os.Stdout, outputFormat, nonNil(recs))
	},
}

// -- logs messages --

var logsMessagesCmd = &cobra.Command{
	Use:   "messages <conversation-id>",
	Short: "List the messages of a conversation in order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openLogStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		msgs, err := st.ListMessages(cmd.Context(), args[0])
		if err != nil {
			return eris.Wrap(err, "logs messages")
		}
		return writeOutput(os.Stdout, outputFormat, nonNil(msgs))
	},
}

func init() {
	logsExecutionsCmd.Flags().String("request-id", "", "filter by request ID")
	logsExecutionsCmd.Flags().String("cnpj", "", "filter by CNPJ")
	logsExecutionsCmd.Flags().String("conversation", "", "filter by conversation ID")
	logsExecutionsCmd.Flags().String("operation", "", "filter by operation (enrich, chat)")
	logsExecutionsCmd.Flags().Int("limit", store.DefaultLimit, "max number of records")

	logsSearchesCmd.Flags().String("request-id", "", "filter by request ID")
	logsSearchesCmd.Flags().String("conversation", "", "filter by conversation ID")
	logsSearchesCmd.Flags().String("term", "", "filter by search term substring")
	logsSearchesCmd.Flags().Int("limit", store.DefaultLimit, "max number of records")

	logsCmd.AddCommand(logsExecutionsCmd)
	logsCmd.AddCommand(logsSearchesCmd)
	logsCmd.AddCommand(logsMessagesCmd)
	rootCmd.AddCommand(logsCmd)
}

// nonNil turns a nil slice into an empty one so it renders as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
