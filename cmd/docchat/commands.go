package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"docchat/internal/api"
	"docchat/internal/model"
	"docchat/internal/notify"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func addScriptCommands(root *cobra.Command) {
	root.AddCommand(sessionsCmd, showCmd, deleteCmd, uploadCmd, askCmd, healthCmd)
}

// printFailures echoes failures of the follow-up steps to w; the
// command's own failure is returned as its error.
func printFailures(w io.Writer, except string) func() {
	return svc.Subscribe(func(e notify.Event) {
		if e.Kind == notify.Failure && e.Source != except && e.Message != "" {
			fmt.Fprintln(w, "!", e.Message)
		}
	})
}

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"ls"},
	Short:   "List uploaded documents",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := svc.Refresh(cmd.Context())
		if err != nil {
			return cliError(err)
		}
		if len(sessions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No documents uploaded yet.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tDOCUMENT\tTYPE\tUPLOADED")
		for _, s := range sessions {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.DocumentName, s.FileType, uploaded(s))
		}
		return tw.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a document's chat history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := svc.Refresh(ctx); err != nil {
			return cliError(err)
		}
		detail, err := svc.Select(ctx, args[0])
		if err != nil {
			return cliError(err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s, uploaded %s)\n", detail.Session.DocumentName, detail.Session.FileType, uploaded(detail.Session))
		if len(detail.ChatHistory) == 0 {
			fmt.Fprintln(out, "\nNo messages yet.")
			return nil
		}
		for _, m := range detail.ChatHistory {
			fmt.Fprintf(out, "\n%s:\n%s\n", speaker(m.Role), m.Content)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <session-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a document and its chat history",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := svc.Delete(cmd.Context(), args[0]); err != nil {
			return cliError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a pdf, docx, doc or txt file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer printFailures(cmd.ErrOrStderr(), "upload")()

		res, err := svc.Upload(cmd.Context(), args[0])
		if err != nil {
			return cliError(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Message)
		fmt.Fprintf(cmd.OutOrStdout(), "Session: %s\n", res.SessionID)
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <session-id> <question...>",
	Short: "Ask one question about a document",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reply, err := svc.Send(cmd.Context(), args[0], strings.Join(args[1:], " "))
		if err != nil {
			return cliError(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the document service is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := svc.Health(cmd.Context())
		if err != nil {
			return cliError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s at %s: %s\n", h.Service, h.Version, cfg.API.BaseURL, h.Status)
		return nil
	},
}

// cliError prefers the service's own wording.
func cliError(err error) error {
	if api.IsService(err) {
		return fmt.Errorf("%s", api.UserMessage(err, ""))
	}
	return err
}

func uploaded(s model.Session) string {
	if s.CreatedAt.IsZero() {
		return "-"
	}
	return humanize.Time(s.CreatedAt)
}

func speaker(r model.Role) string {
	if r == model.RoleUser {
		return "You"
	}
	return "Assistant"
}
