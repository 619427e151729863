package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/liuscraft/orion-therapy/internal/config"
	"github.com/liuscraft/orion-therapy/internal/dialogue"
	"github.com/liuscraft/orion-therapy/internal/logging"
	"github.com/liuscraft/orion-therapy/internal/nlu"
	"github.com/liuscraft/orion-therapy/internal/store"
	"github.com/liuscraft/orion-therapy/internal/voicebot"
)

const consoleHelp = `Type what the patient says. An empty line counts as silence.
Commands: /state  /reset  /help  /quit`

func newConsoleCmd(a *app) *cobra.Command {
	var noStore bool

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Run one therapy session in the terminal",
		Long:  `Read utterances from stdin and print the assistant's replies. Useful for trying dialogue changes without a client.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if noStore {
				a.cfg.Store.Enabled = false
			}
			defer logging.Sync()
			return runConsole(cmd.Context(), a.cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not record the session journal")

	return cmd
}

func runConsole(ctx context.Context, cfg *config.AppConfig, in io.Reader, out io.Writer) error {
	dialogueCfg := cfg.DialogueConfig()
	interp, err := nlu.New(ctx, cfg.NLU, dialogueCfg.CalibrationPhrases)
	if err != nil {
		return err
	}

	session, err := voicebot.NewSession(dialogueCfg, interp, voicebot.Options{ResetDelay: cfg.Server.ResetDelay.Std()})
	if err != nil {
		return err
	}
	defer session.Close()

	if cfg.Store.Enabled {
		repo, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer repo.Close()
		voicebot.AttachJournal(session.Bus(), repo)
	}

	session.Bus().Subscribe(voicebot.EventTypeSessionReset, func(voicebot.Event) {
		fmt.Fprintln(out, "[session reset] Back to calibration.")
	})

	fmt.Fprintf(out, "Session %s (nlu: %s)\n%s\n", session.ID(), interp.Name(), consoleHelp)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(out, consoleHelp)
			continue
		case "/state":
			printSnapshot(out, session.Snapshot())
			continue
		case "/reset":
			if err := session.Reset(); err != nil {
				fmt.Fprintf(out, "reset failed: %v\n", err)
			}
			continue
		}

		var outcome dialogue.DispatchOutcome
		if line == "" {
			outcome, err = session.HandleNoSpeech()
		} else {
			outcome, err = session.HandleUtterance(ctx, line)
		}
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		printOutcome(out, outcome)
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

func printOutcome(w io.Writer, o dialogue.DispatchOutcome) {
	fmt.Fprintf(w, "[%s] %s\n", o.Tone, o.Message)
	if o.StateChanged() {
		fmt.Fprintf(w, "  state: %s -> %s\n", o.PreviousState, o.NewState)
	}
	if o.SessionShouldReset {
		fmt.Fprintln(w, "  session will reset shortly")
	}
}

func printSnapshot(w io.Writer, s dialogue.Snapshot) {
	fmt.Fprintf(w, "state=%s calibration=%d exercise=%d errors=%d", s.State, s.CalibrationPhraseIndex, s.ExerciseIndex, s.ConsecutiveErrors)
	if s.HasPending {
		fmt.Fprintf(w, " pending=%s", s.PendingIntent)
	}
	if s.Paused {
		fmt.Fprint(w, " paused")
	}
	fmt.Fprintln(w)
}
