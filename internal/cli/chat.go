package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/etk18/portfolio/internal/chat"
	"github.com/etk18/portfolio/internal/gate"
	"github.com/etk18/portfolio/internal/identity"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the portfolio assistant",
		Long:  "Interactive assistant session with the same free limit and cooldown as the site. Commands: /unlock <passkey>, /reset, /quit.",
		Run:   runChat,
	}

	cmd.Flags().String("visitor", "", "Visitor ID to chat as (default: a new anonymous visitor)")

	RootCmd.AddCommand(cmd)
}

func runChat(cmd *cobra.Command, args []string) {
	visitorID, _ := cmd.Flags().GetString("visitor")

	a, err := openApp()
	if err != nil {
		exitErr("open app", err)
	}
	defer a.Close()

	if visitorID == "" {
		if visitorID, err = identity.NewAnonID(); err != nil {
			exitErr("create visitor", err)
		}
	}
	if err := identity.EnsureVisitor(cmd.Context(), a.Repo, visitorID); err != nil {
		exitErr("register visitor", err)
	}

	sess := a.Sessions.Get(visitorID, "cli")
	if err := chatLoop(cmd.Context(), sess, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
		exitErr("chat", err)
	}
}

// chatLoop reads one line per turn until EOF or /quit.
func chatLoop(ctx context.Context, sess *chat.Session, in io.Reader, out io.Writer) error {
	snap, err := sess.State(ctx)
	if err != nil {
		return err
	}
	for _, t := range snap.Turns {
		fmt.Fprintf(out, "assistant> %s\n", t.Content)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/reset":
			if _, err := sess.Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintf(out, "assistant> %s\n", chat.Greeting)
		case strings.HasPrefix(line, "/unlock"):
			passkey := strings.TrimSpace(strings.TrimPrefix(line, "/unlock"))
			_, err := sess.Unlock(ctx, passkey)
			if errors.Is(err, gate.ErrInvalidPasskey) {
				fmt.Fprintln(out, chat.InvalidPasskeyMessage)
				continue
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Premium unlocked.")
		default:
			outcome, err := sess.Submit(ctx, line)
			if err != nil {
				return err
			}
			printOutcome(out, outcome)
		}
	}
}

func printOutcome(out io.Writer, o chat.Outcome) {
	switch o.Status {
	case chat.StatusAnswered, chat.StatusFailed:
		if o.Reply != nil {
			fmt.Fprintf(out, "assistant> %s\n", o.Reply.Content)
		}
		if !o.State.Premium {
			fmt.Fprintf(out, "(%d of %d free questions left)\n", o.State.Remaining, o.State.FreeLimit)
		}
	case chat.StatusCoolingDown:
		fmt.Fprintf(out, "Please wait %ds before sending another message.\n", o.State.CooldownSeconds)
	case chat.StatusBusy:
		fmt.Fprintln(out, "Still answering the previous message.")
	case chat.StatusPaywall:
		fmt.Fprintln(out, "Free questions used up. Type /unlock <passkey> to continue.")
	}
}
