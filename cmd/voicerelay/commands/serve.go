package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/medivoice/voicerelay/pkg/cli"
	"github.com/medivoice/voicerelay/pkg/gateway"
	"github.com/medivoice/voicerelay/pkg/relay"
)

var (
	serveAddr    string
	serveAPIKey  string
	serveASRURL  string
	serveTTSURL  string
	serveVoice   string
	serveTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the realtime voice gateway",
	Long: `Run the WebSocket gateway.

Endpoints:
  /asr      streaming speech recognition (binary audio in, JSON events out)
  /tts      streaming speech synthesis (JSON request in, PCM frames out)
  /healthz  liveness and active session count
  /config   accepted connection parameters

The upstream credential comes from the active context, the --api-key flag,
or per-connection api_key query parameters, in reverse order of precedence.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8007", "listen address")
	serveCmd.Flags().StringVar(&serveAPIKey, "api-key", "", "upstream API key fallback")
	serveCmd.Flags().StringVar(&serveASRURL, "asr-url", "", "override the ASR upstream endpoint")
	serveCmd.Flags().StringVar(&serveTTSURL, "tts-url", "", "override the TTS upstream endpoint")
	serveCmd.Flags().StringVar(&serveVoice, "voice", "", "default synthesis voice")
	serveCmd.Flags().DurationVar(&serveTimeout, "start-timeout", 0, "upstream task/session start timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := gateway.Config{
		APIKey:         serveAPIKey,
		RecognitionURL: serveASRURL,
		SynthesisURL:   serveTTSURL,
		StartTimeout:   serveTimeout,
		Voice:          serveVoice,
	}
	addr := serveAddr

	if cliCtx := resolveContext(); cliCtx != nil {
		if cfg.APIKey == "" {
			cfg.APIKey = cliCtx.APIKey
		}
		if cfg.RecognitionURL == "" {
			cfg.RecognitionURL = cliCtx.RecognitionURL
		}
		if cfg.SynthesisURL == "" {
			cfg.SynthesisURL = cliCtx.SynthesisURL
		}
		if cfg.Voice == "" {
			cfg.Voice = cliCtx.Voice
		}
		if !cmd.Flags().Changed("addr") && cliCtx.Listen != "" {
			addr = cliCtx.Listen
		}
	}

	registry := relay.NewRegistry()
	gw := gateway.New(cfg, registry, slog.Default())

	server := &http.Server{
		Addr:    addr,
		Handler: gw.Handler(),
	}

	fmt.Print(cli.Banner("voicerelay", [][2]string{
		{"listen", addr},
		{"asr", orDefault(cfg.RecognitionURL, "dashscope default")},
		{"tts", orDefault(cfg.SynthesisURL, "dashscope default")},
	}))
	fmt.Println(cli.Hint("press ctrl-c to stop"))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down", "sessions", registry.Len())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		slog.Error("shutdown error", "error", err)
	}
	registry.CloseAll()

	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
