/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

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

	"github.com/caddyserver/certmagic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/posthog/posthog-go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/artify/api"
	"github.com/blnkfinance/artify/config"
	trace "github.com/blnkfinance/artify/internal/traces"
)

const shutdownTimeout = 30 * time.Second

// newTLSServer manages certificates for the configured domain with CertMagic.
func newTLSServer(ctx context.Context, r *gin.Engine, conf config.ServerConfig) (*http.Server, error) {
	certmagic.DefaultACME.Agreed = true
	certmagic.DefaultACME.Email = conf.Email
	cfg := certmagic.NewDefault()
	cfg.Storage = &certmagic.FileStorage{Path: ".certmagic"}

	domains := []string{conf.Domain}
	if conf.Domain == "" {
		logrus.Warn("No domain specified, defaulting to localhost")
		domains = []string{"localhost"}
	}

	if err := cfg.ManageSync(ctx, domains); err != nil {
		return nil, err
	}

	return &http.Server{
		Addr:      ":" + conf.Port,
		Handler:   r,
		TLSConfig: cfg.TLSConfig(),
	}, nil
}

// sendHeartbeat reports a periodic heartbeat to PostHog until ctx is done.
func sendHeartbeat(ctx context.Context, client posthog.Client, heartbeatID string) {
	ticker := time.NewTicker(5 * time.Minute)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := client.Enqueue(posthog.Capture{
					DistinctId: heartbeatID,
					Event:      "server_heartbeat",
					Properties: map[string]interface{}{
						"timestamp": time.Now().UTC(),
					},
				}); err != nil {
					logrus.Printf("Failed to send heartbeat: %v", err)
				}
			}
		}
	}()
}

func initializeTracing(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	shutdown, err := trace.SetupOTelSDK(ctx, serviceName)
	if err != nil {
		return nil, fmt.Errorf("error setting up OTel SDK: %v", err)
	}
	return shutdown, nil
}

func initializePostHog(ctx context.Context, cfg config.AnalyticsConfig) posthog.Client {
	if cfg.PostHogKey == "" {
		return nil
	}
	client, err := posthog.NewWithConfig(cfg.PostHogKey, posthog.Config{Endpoint: cfg.PostHogEndpoint})
	if err != nil {
		logrus.WithError(err).Warn("posthog disabled")
		return nil
	}
	sendHeartbeat(ctx, client, uuid.New().String())
	return client
}

// initializeObservability starts tracing when telemetry is enabled and the PostHog heartbeat
// when an analytics key is set. The returned shutdown is never nil.
func initializeObservability(ctx context.Context, cfg *config.Configuration) (posthog.Client, func(context.Context) error, error) {
	shutdown := func(context.Context) error { return nil }
	if cfg.EnableTelemetry {
		var err error
		shutdown, err = initializeTracing(ctx, cfg.ProjectName)
		if err != nil {
			return nil, nil, err
		}
	}
	return initializePostHog(ctx, cfg.Analytics), shutdown, nil
}

// runServer serves until ctx is cancelled, then drains in-flight requests.
func runServer(ctx context.Context, router *gin.Engine, cfg config.ServerConfig) error {
	var (
		server *http.Server
		err    error
	)
	if cfg.SSL {
		server, err = newTLSServer(ctx, router, cfg)
		if err != nil {
			return err
		}
	} else {
		server = &http.Server{Addr: ":" + cfg.Port, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Starting server on port %s (tls: %t)", cfg.Port, cfg.SSL)
		if cfg.SSL {
			errCh <- server.ListenAndServeTLS("", "")
		} else {
			errCh <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logrus.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// serverCommands returns the command that starts the HTTP API.
func serverCommands(app *artifyInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start artify server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := app.setup(); err != nil {
				return err
			}

			phClient, shutdown, err := initializeObservability(ctx, app.cnf)
			if err != nil {
				return err
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logrus.Printf("Error during shutdown: %v", err)
				}
			}()
			if phClient != nil {
				defer phClient.Close()
			}

			router := api.NewAPI(app.artify).Router()
			serveErr := runServer(ctx, router, app.cnf.Server)

			// running generations finish before the process exits
			logrus.Info("Waiting for running generations")
			if err := app.artify.Close(); err != nil {
				logrus.WithError(err).Warn("error closing artify")
			}
			return serveErr
		},
	}

	return cmd
}
