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

	"github.com/spf13/cobra"

	"github.com/sagalabs/saga/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Starts the REST and WebSocket API server that the desktop and web clients talk to.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		srv := server.New(app.cfg.Server, server.Deps{
			Registry:  app.registry,
			Gateway:   app.gateway,
			Knowledge: app.knowledge,
			Indexer:   app.indexer,
			Retriever: app.retriever,
			Topics:    app.topics,
			Chat:      app.chat,
			Prompts:   app.prompts,
			UploadDir: app.cfg.Paths.UploadDir,
		})

		errCh := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case <-stop:
		}

		fmt.Fprintln(os.Stderr, "shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
