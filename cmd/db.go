package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"

	"github.com/agentmarket/coordinator/db"
	coordinatormigrations "github.com/agentmarket/coordinator/db/migrations/coordinator-migrations"
	"github.com/agentmarket/coordinator/internal/logging"
)

// ConfirmPromptInterface lets tests substitute the interactive "are you
// sure" prompt before a destructive migrate down.
type ConfirmPromptInterface interface {
	Run() (string, error)
}

var _ ConfirmPromptInterface = (*promptui.Prompt)(nil)

type DatabaseCommand struct{}

// Command returns the "db" subcommand tree: "db migrate up [count]" and
// "db migrate down <count>" against the coordinator's single schema.
func (c *DatabaseCommand) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database schema migration helpers",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.Parent().PersistentPreRun(cmd.Parent(), args)
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations",
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	migrateUpCmd := &cobra.Command{
		Use:   "up [count]",
		Short: "Migrate the schema up [count] steps, or all pending migrations if omitted",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			count := 0
			if len(args) > 0 {
				parsed, err := strconv.Atoi(args[0])
				if err != nil {
					logging.Fatalf("invalid [count] argument %q: %s", args[0], err.Error())
				}
				count = parsed
			}
			c.run(migrate.Up, count)
		},
	}

	migrateDownCmd := &cobra.Command{
		Use:   "down <count>",
		Short: "Migrate the schema down <count> steps",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			count, err := strconv.Atoi(args[0])
			if err != nil {
				logging.Fatalf("invalid <count> argument %q: %s", args[0], err.Error())
			}
			if !c.confirmDestructive(&promptui.Prompt{
				Label: fmt.Sprintf("This will migrate the schema down %d step(s) against %s. Type \"yes\" to continue", count, globalOptions.storeURI),
			}) {
				logging.Info("migrate down cancelled")
				return
			}
			c.run(migrate.Down, count)
		},
	}

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	cmd.AddCommand(migrateCmd)
	return cmd
}

// confirmDestructive asks the operator to type "yes" before a schema
// rollback proceeds.
func (c *DatabaseCommand) confirmDestructive(prompt ConfirmPromptInterface) bool {
	answer, err := prompt.Run()
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), "yes")
}

func (c *DatabaseCommand) run(dir migrate.MigrationDirection, count int) {
	applied, err := db.Migrate(globalOptions.storeURI, dir, count, coordinatormigrations.FS, db.CoordinatorMigrationsTableName)
	if err != nil {
		logging.Fatalf("migrating database: %s", err.Error())
	}
	if applied == 0 {
		logging.Info("no migrations applied")
		return
	}
	logging.Infof("applied %d migrations", applied)
}
