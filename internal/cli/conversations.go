package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/etk18/portfolio/internal/domain"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "Print stored admin conversations as JSON",
		Run:   runConversations,
	}

	cmd.Flags().IntP("limit", "l", 0, "Only the most recent N rows (0 = all)")

	RootCmd.AddCommand(cmd)
}

func runConversations(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := openApp()
	if err != nil {
		exitErr("open app", err)
	}
	defer a.Close()

	rows, err := a.Conversations.ListConversations(cmd.Context(), limit)
	if err != nil {
		exitErr("list conversations", err)
	}
	if err := writeJSON(cmd.OutOrStdout(), rowsOrEmpty(rows)); err != nil {
		exitErr("write", err)
	}
}

func rowsOrEmpty(rows []domain.ConversationRow) []domain.ConversationRow {
	if rows == nil {
		return []domain.ConversationRow{}
	}
	return rows
}

func writeJSON(out io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}
