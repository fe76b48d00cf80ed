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
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/artify"
	"github.com/blnkfinance/artify/config"
	"github.com/blnkfinance/artify/database"
	"github.com/blnkfinance/artify/internal/notification"
)

// Artify represents the CLI application, encapsulating the root Cobra command.
type Artify struct {
	cmd *cobra.Command
}

// artifyInstance holds the service and its configuration for the running command.
type artifyInstance struct {
	configFile string
	artify     *artify.Artify
	cnf        *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error using Logrus.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration before any command runs.
func preRun(app *artifyInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := config.InitConfig(app.configFile); err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}
		app.cnf = cnf
		return nil
	}
}

// setup connects to the database and wires the service. Only commands that serve
// traffic or process tasks need it.
func (app *artifyInstance) setup() error {
	db, err := database.NewDataSource(app.cnf)
	if err != nil {
		notification.NotifyError(err)
		return fmt.Errorf("error getting datasource: %v", err)
	}

	service, err := artify.NewArtify(db)
	if err != nil {
		notification.NotifyError(err)
		return fmt.Errorf("error creating artify: %v", err)
	}
	app.artify = service
	return nil
}

// NewCLI creates the command-line interface with the start, workers, migrate and config commands.
func NewCLI() *Artify {
	app := &artifyInstance{}

	var rootCmd = &cobra.Command{
		Use:   "artify",
		Short: "AI photo stylizing mini-app backend",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&app.configFile, "config", "./artify.json", "Configuration file for artify")
	rootCmd.PersistentPreRunE = preRun(app)

	rootCmd.AddCommand(serverCommands(app))
	rootCmd.AddCommand(workerCommands(app))
	rootCmd.AddCommand(migrateCommands(app))
	rootCmd.AddCommand(configCommands())

	return &Artify{cmd: rootCmd}
}

func (a Artify) executeCLI() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
