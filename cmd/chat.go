package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/cnpj-enrich/internal/model"
	"github.com/sells-group/cnpj-enrich/internal/pipeline"
)

var (
	chatConversationID string
	chatHistoryFile    string
)

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send a message to the assistant",
	Long:  "Sends one message to the assistant. A message that looks like a CNPJ is enriched; anything else gets a conversational reply.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		history, err := loadHistory(chatHistoryFile)
		if err != nil {
			return err
		}

		env, err := initAgent(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		reply, err := env.Service.Respond(ctx, pipeline.ChatRequest{
			Message:        strings.Join(args, " "),
			History:        history,
			ConversationID: chatConversationID,
		})
		if err != nil {
			return err
		}
		return writeOutput(os.Stdout, outputFormat, reply)
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatConversationID, "conversation", "", "conversation ID; when set both messages are logged")
	chatCmd.Flags().StringVar(&chatHistoryFile, "history", "", "JSON file with prior turns ([{\"role\":\"user\",\"content\":\"...\"}])")
	rootCmd.AddCommand(chatCmd)
}

// loadHistory reads prior turns from a JSON file. An empty path means no history.
func loadHistory(path string) ([]model.ChatTurn, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read history %s", path)
	}
	var turns []model.ChatTurn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, eris.Wrapf(err, "parse history %s", path)
	}
	return turns, nil
}
