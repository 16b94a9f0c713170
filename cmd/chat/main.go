package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/complymate/internal/config"
	chatservice "github.com/zhouzirui/complymate/internal/service/chat"
	"github.com/zhouzirui/complymate/internal/service/speech"
	"github.com/zhouzirui/complymate/internal/ui"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		apiURL string
		voice  string
		noMic  bool
	)

	cmd := &cobra.Command{
		Use:   "complymate",
		Short: "Voice-enabled OSHA compliance chat",
		Long: `ComplyMate is a terminal chat client for the OSHA compliance assistant.

Type or dictate a question, press enter to send it and replay any answer
through speech synthesis.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(apiURL, voice, noMic)
		},
	}

	cmd.Flags().StringVar(&apiURL, "api-url", "", "Chat endpoint (overrides CHAT_API_URL)")
	cmd.Flags().StringVar(&voice, "voice", "", "Voice id for playback (overrides CHAT_VOICE)")
	cmd.Flags().BoolVar(&noMic, "no-mic", false, "Disable dictation")

	return cmd
}

func run(apiURL, voice string, noMic bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if apiURL != "" {
		cfg.Client.APIURL = apiURL
	}
	if voice != "" {
		cfg.Client.Voice = voice
	}

	// the TUI owns stdout, logs go to a file
	logFile, err := tea.LogToFile(cfg.Client.LogFile, "complymate")
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	gateway := chatservice.NewHTTPGateway(cfg.Client.APIURL, tokenSource(cfg.Client), &http.Client{})
	store := chatservice.NewStore(gateway, chatservice.StoreOptions{
		Greeting:       cfg.Client.Greeting,
		RequestTimeout: cfg.Client.RequestTimeout,
	})

	recognizer, synthesizer := speech.NewService(cfg.Speech.Model()).Engines()
	if noMic {
		recognizer = nil
	}

	voices := speech.NewVoiceSelector(cfg.Client.VoiceLocale)
	if synthesizer != nil {
		voices.Update(synthesizer.Voices())
		if cfg.Client.Voice != "" && !voices.Select(cfg.Client.Voice) {
			log.Printf("[chat] unknown voice %q, using %q", cfg.Client.Voice, voices.Selected().ID)
		}
	}

	log.Printf("[chat] starting client against %s", cfg.Client.APIURL)

	m := ui.NewModel(ctx, ui.Deps{
		Store:       store,
		Recognizer:  recognizer,
		Synthesizer: synthesizer,
		Voices:      voices,
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

func tokenSource(cfg config.ClientConfig) chatservice.TokenSource {
	switch {
	case cfg.AccessToken != "":
		return chatservice.StaticToken(cfg.AccessToken)
	case cfg.AccessTokenFile != "":
		return chatservice.FileToken{Path: cfg.AccessTokenFile}
	default:
		log.Printf("[chat] no access token configured, requests will fail")
		return nil
	}
}
