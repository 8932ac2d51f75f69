// Command chat talks to the scheme assistant from a terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lukasbauer/sahayak/internal/app"
	"github.com/lukasbauer/sahayak/internal/catalog"
	"github.com/lukasbauer/sahayak/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	sessionID   string
	verbose     bool
	schemesPath string
	audioOut    string
)

var rootCmd = &cobra.Command{
	Use:   "chat",
	Short: "Hindi government scheme assistant",
	Long: `Chat with the scheme assistant in the terminal.

Type one utterance per line. "रोकें" or "बंद करें" ends the conversation.
Configuration is read from the environment (and .env), as for the server.`,
	SilenceUsage: true,
	RunE:         runChat,
}

var voiceCmd = &cobra.Command{
	Use:   "voice <audio-file>",
	Short: "Run one spoken turn from an audio file",
	Args:  cobra.ExactArgs(1),
	RunE:  runVoice,
}

var schemesCmd = &cobra.Command{
	Use:   "schemes",
	Short: "List the schemes in the catalog",
	RunE:  runSchemes,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&sessionID, "session", "s", "", "Session ID to resume (default: new session)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	schemesCmd.Flags().StringVar(&schemesPath, "file", os.Getenv("SCHEMES_PATH"), "Catalog file (default: built-in catalog)")
	voiceCmd.Flags().StringVarP(&audioOut, "out", "o", "reply.mp3", "Where to write the spoken reply")

	rootCmd.AddCommand(voiceCmd)
	rootCmd.AddCommand(schemesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return app.NewLogger(level, "console")
}

// bootstrap builds the application from the environment. The caller closes it.
func bootstrap(ctx context.Context) (*app.App, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, app.LoadConfigFromEnv(), logger)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return a, nil
}

func currentSession() string {
	if sessionID != "" {
		return sessionID
	}
	return session.NewID()
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	r := &repl{svc: a.Assistant(), id: currentSession(), in: cmd.InOrStdin(), out: cmd.OutOrStdout()}
	return r.run(ctx)
}

func runVoice(cmd *cobra.Command, args []string) error {
	audio, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	id := currentSession()
	vr, err := a.Assistant().AdvanceVoice(ctx, id, audio)
	if err != nil && vr.Text == "" {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "session: %s\n", id)
	fmt.Fprintf(out, "आप: %s\n", vr.Transcript)
	printReply(out, vr.Reply)
	if vr.Audio != nil {
		if werr := os.WriteFile(audioOut, vr.Audio, 0o644); werr != nil {
			return werr
		}
		fmt.Fprintf(out, "audio: %s\n", audioOut)
	}
	return err
}

func runSchemes(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	c, _ := catalog.LoadOrEmpty(schemesPath, logger)
	out := cmd.OutOrStdout()
	for _, s := range c.Schemes() {
		income := fmt.Sprintf("₹%d", s.MaxIncome)
		if s.MaxIncome == catalog.NoIncomeLimit {
			income = "-"
		}
		fmt.Fprintf(out, "%-40s आयु ≥ %-3d आय ≤ %s\n", s.Name, s.MinAge, income)
	}
	return nil
}
