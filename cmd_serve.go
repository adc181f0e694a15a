package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bug_stomper/assistant"
	"bug_stomper/auth"
	"bug_stomper/server"
	"bug_stomper/storage"
	"bug_stomper/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web application",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

const sessionPurgeInterval = time.Hour

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Database.Path, logger.Named("store"))
	if err != nil {
		return err
	}
	defer st.Close()
	if n, err := st.SeedTags(ctx); err != nil {
		return err
	} else if n > 0 {
		logger.Info("seeded tags", zap.Int("count", n))
	}

	disk, err := storage.NewDisk(cfg.Storage.Dir, cfg.Storage.PublicURL, logger.Named("storage"))
	if err != nil {
		return err
	}

	suggester, reviser, err := buildAssistant(st)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Deps{
		Store: st,
		Auth: auth.NewService(st, auth.Options{
			TTL:    cfg.SessionTTL(),
			Secure: cfg.Server.CookieSecure,
		}, logger.Named("auth")),
		Objects:   disk,
		Suggester: suggester,
		Reviser:   reviser,
		Log:       logger.Named("http"),
	}, server.Options{
		HistoryLimit:   cfg.Editor.HistoryLimit,
		MaxTags:        cfg.Tags.MaxTags,
		TagDebounce:    cfg.TagDebounce(),
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		DraftTTL:       cfg.DraftTTL(),
		ObjectsPrefix:  cfg.Storage.PublicURL,
		ObjectsHandler: disk.Handler(),
	})
	if err != nil {
		return err
	}

	go purgeSessions(ctx, st)

	listen := cfg.Server.Addr
	if serveAddr != "" {
		listen = serveAddr
	}
	httpSrv := &http.Server{
		Addr:              listen,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting web server", zap.String("addr", listen))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// buildAssistant returns nil helpers when no LLM provider is configured.
func buildAssistant(st *store.Store) (*assistant.Suggester, *assistant.Reviser, error) {
	if cfg.LLM.Provider == "" {
		return nil, nil, nil
	}
	llm, err := assistant.NewLLM(assistant.LLMSettings{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, nil, err
	}
	log := logger.Named("assistant")
	sug, err := assistant.NewSuggester(llm, log)
	if err != nil {
		return nil, nil, err
	}
	sug.Vocabulary = func(ctx context.Context) ([]string, error) {
		tags, err := st.ListTags(ctx)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(tags))
		for i, t := range tags {
			names[i] = t.Name
		}
		return names, nil
	}
	rev, err := assistant.NewReviser(llm, log)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("assistant enabled", zap.String("provider", cfg.LLM.Provider), zap.String("model", cfg.LLM.Model))
	return sug, rev, nil
}

func purgeSessions(ctx context.Context, st *store.Store) {
	t := time.NewTicker(sessionPurgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := st.PurgeSessions(ctx)
			if err != nil {
				logger.Warn("purge sessions", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug("purged expired sessions", zap.Int64("count", n))
			}
		}
	}
}
