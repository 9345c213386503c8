package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docchat/internal/chat"
	"github.com/fyrsmithlabs/docchat/internal/chunker"
	"github.com/fyrsmithlabs/docchat/internal/config"
	"github.com/fyrsmithlabs/docchat/internal/embeddings"
	"github.com/fyrsmithlabs/docchat/internal/extract"
	"github.com/fyrsmithlabs/docchat/internal/ingest"
	"github.com/fyrsmithlabs/docchat/internal/logging"
	"github.com/fyrsmithlabs/docchat/internal/retrieval"
	"github.com/fyrsmithlabs/docchat/internal/server"
	"github.com/fyrsmithlabs/docchat/internal/store"
	"github.com/fyrsmithlabs/docchat/internal/vectorstore"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the docchat HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// app holds the wired services and their teardown order.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *store.Store
	index    vectorstore.Index
	embedder embeddings.Embedder
	pipeline *ingest.Pipeline
}

// buildApp loads configuration and wires the ingestion side. The chat
// service is layered on in runServe since only serving needs a completion
// endpoint. Callers own the returned app and must call close when done.
func buildApp() (*app, error) {
	// A .env file is a convenience for local runs; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	st, err := store.New(cfg.Store, logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	index, err := vectorstore.NewIndex(cfg.VectorStore, logger.Named("vectorstore"))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open vector index: %w", err)
	}

	embedder, err := embeddings.NewProvider(cfg.Embeddings, logger.Named("embeddings"))
	if err != nil {
		index.Close()
		st.Close()
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	ch, err := chunker.New(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap)
	if err != nil {
		return nil, fmt.Errorf("init chunker: %w", err)
	}

	ocr := extract.NewOCR(cfg.OCR.Enabled, logger.Named("ocr"))
	router := extract.NewRouter(ocr, logger.Named("extract"))

	pipeline, err := ingest.NewPipeline(router, ch, embedder, index, logger.Named("ingest"))
	if err != nil {
		return nil, fmt.Errorf("init pipeline: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		index:    index,
		embedder: embedder,
		pipeline: pipeline,
	}, nil
}

// close tears the services down: index and store first, then the embedder's
// model handle.
func (a *app) close() {
	if err := a.index.Close(); err != nil {
		a.logger.Warn("closing vector index", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", zap.Error(err))
	}
	if closer, ok := a.embedder.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn("closing embedder", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func runServe() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	retriever, err := retrieval.NewService(a.embedder, a.index, a.logger.Named("retrieval"))
	if err != nil {
		return fmt.Errorf("init retrieval: %w", err)
	}

	completer, err := chat.NewOpenAICompleter(a.cfg.Chat)
	if err != nil {
		return fmt.Errorf("init completer: %w", err)
	}

	chatSvc, err := chat.NewService(a.store, retriever, completer, a.cfg.Conversation, a.logger.Named("chat"))
	if err != nil {
		return fmt.Errorf("init chat service: %w", err)
	}

	srv, err := server.NewServer(chatSvc, a.pipeline, a.store, a.logger.Named("http"), a.cfg.Server)
	if err != nil {
		return fmt.Errorf("init http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info("signal received, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		a.logger.Warn("http shutdown", zap.Error(err))
	}
	return nil
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Index local files without starting the server",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		for _, path := range args {
			name := filepath.Base(path)
			res, err := a.pipeline.Ingest(ctx, path, filepath.Ext(path), name)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", name, err)
			}
			fmt.Printf("%s: %d chunks (%s)\n", name, res.ChunkCount, res.Extractor)
		}
		return nil
	},
}
