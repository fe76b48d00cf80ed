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

/*
Package main provides the CLI commands for managing database migrations in the Artify application.
This includes commands for applying and rolling back migrations.
*/

package main

import (
	"database/sql"
	"fmt"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/artify"
	"github.com/blnkfinance/artify/database"
)

const schema = "artify"

// migrateCommands creates the root command for migration-related operations.
func migrateCommands(app *artifyInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "run artify database migrations",
	}

	cmd.AddCommand(migrateDirectionCommand(app, "up", migrate.Up))
	cmd.AddCommand(migrateDirectionCommand(app, "down", migrate.Down))

	return cmd
}

func migrationSource() migrate.MigrationSource {
	return migrate.EmbedFileSystemMigrationSource{
		FileSystem: artify.SQLFiles,
		Root:       "sql",
	}
}

// runMigrations applies the embedded migrations in direction. The migration table
// lives in the artify schema, so the schema is created first.
func runMigrations(db *sql.DB, direction migrate.MigrationDirection) (int, error) {
	if _, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS ` + schema); err != nil {
		return 0, fmt.Errorf("creating schema: %w", err)
	}
	migrate.SetSchema(schema)
	return migrate.Exec(db, "postgres", migrationSource(), direction)
}

func migrateDirectionCommand(app *artifyInstance, use string, direction migrate.MigrationDirection) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("migrate the database %s", use),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.ConnectDB(app.cnf.DataSource.Dns)
			if err != nil {
				return fmt.Errorf("error connecting to database: %w", err)
			}
			defer db.Close()

			n, err := runMigrations(db, direction)
			if err != nil {
				return fmt.Errorf("error migrating %s: %w", use, err)
			}
			logrus.Infof("Applied %d migrations (%s)", n, use)
			return nil
		},
	}

	return cmd
}
