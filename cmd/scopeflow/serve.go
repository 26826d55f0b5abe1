package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpAdapter "github.com/scopeflow/scopeflow/pkg/adapters/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts the scoping engine in server mode, exposing the session lifecycle as a JSON API over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetString("port")

		eng := mustEngine(cmd)
		defer eng.Close()

		srv := &http.Server{
			Addr:    ":" + port,
			Handler: httpAdapter.NewHandler(eng),
		}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Printf("Starting scopeflow server on %s\n", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fatal("Server error: %v", err)

		case sig := <-shutdown:
			fmt.Printf("\nShutdown signal received: %v\n", sig)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete: %v\n", err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error closing server: %v\n", err)
				}
			}
			fmt.Println("Server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
}
