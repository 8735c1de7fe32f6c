package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-firestore-sentiment/internal/api"
	productEventPublisher "go-firestore-sentiment/internal/eventpublisher/product"
	backfillHandler "go-firestore-sentiment/internal/handler/backfill"
	"go-firestore-sentiment/internal/poller"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	var noPoller bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the scheduled poller and the backfill listener",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), noPoller)
		},
	}
	cmd.Flags().BoolVar(&noPoller, "no-poller", false, "do not start the scheduled poller")
	return cmd
}

func serve(ctx context.Context, noPoller bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	a, err := newApp(ctx, cnf)
	if err != nil {
		return err
	}
	defer a.Close()

	server := &http.Server{
		Addr:              cnf.HttpAddr,
		Handler:           api.New(a.orchestrator, a.scrapers, a.products, a.reviews, a.classifier),
		ReadHeaderTimeout: 10 * time.Second,
	}

	backfillPublisher := productEventPublisher.ProductPublisherFactory(a.products).OnProductAwaitingBackfill()
	bf := backfillHandler.New(backfillPublisher, a.products, a.orchestrator, cnf.Scrape.DefaultLimit)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		return bf.EventHandler(gctx)
	})
	group.Go(func() error {
		return backfillPublisher.Start(gctx)
	})
	if !noPoller {
		p := poller.New(a.orchestrator, a.products, cnf.Poller)
		group.Go(func() error {
			return p.Start(gctx)
		})
	}

	select {
	case <-sigs:
		// Received a termination signal, continue to shutdown
	case <-gctx.Done():
		// errgroup encountered an error, continue to shutdown
	}

	cancel() // cancel the root context to signal all the consumers

	done := make(chan error, 1)
	go func() {
		done <- group.Wait()
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		log.Info().Msg("shutdown complete")
		return nil
	case <-time.After(shutdownTimeout):
		return fmt.Errorf("shutdown timed out after %s", shutdownTimeout)
	case <-sigs:
		return fmt.Errorf("forced shutdown")
	}
}
