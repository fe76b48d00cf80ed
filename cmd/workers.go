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
	"fmt"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/artify"
	"github.com/blnkfinance/artify/config"
	redis_db "github.com/blnkfinance/artify/internal/redis-db"
)

func initializeQueues(cfg *config.Configuration) map[string]int {
	return map[string]int{
		cfg.Queue.WebhookQueue: 1,
	}
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	opt, err := redis_db.AsynqOpt(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(opt, asynq.Config{
		Concurrency: 4,
		Queues:      queues,
		Logger:      logrus.StandardLogger(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			logrus.WithFields(logrus.Fields{"task": task.Type(), "retry": retried}).WithError(err).Warn("task failed")
		}),
	}), nil
}

func initializeTaskHandlers(cfg *config.Configuration, mux *asynq.ServeMux) {
	mux.HandleFunc(cfg.Queue.WebhookQueue, artify.ProcessWebhook)
}

// startMonitoring serves asynqmon under /monitoring.
func startMonitoring(conf *config.Configuration) error {
	opt, err := redis_db.AsynqOpt(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return err
	}
	h := asynqmon.New(asynqmon.Options{
		RootPath:     "/monitoring",
		RedisConnOpt: opt,
	})

	go func() {
		monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
		logrus.Infof("Asynqmon server listening on %s/monitoring", monitoringAddr)
		if err := http.ListenAndServe(monitoringAddr, h); err != nil {
			logrus.Fatalf("could not start asynqmon server: %v", err)
		}
	}()
	return nil
}

// workerCommands defines the "workers" command that delivers queued webhooks.
func workerCommands(app *artifyInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start artify workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			conf := app.cnf

			phClient, shutdown, err := initializeObservability(ctx, conf)
			if err != nil {
				return err
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					logrus.Printf("Error during shutdown: %v", err)
				}
			}()
			if phClient != nil {
				defer phClient.Close()
			}

			srv, err := initializeWorkerServer(conf, initializeQueues(conf))
			if err != nil {
				return err
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(conf, mux)

			if err := startMonitoring(conf); err != nil {
				return err
			}

			return srv.Run(mux)
		},
	}

	return cmd
}
