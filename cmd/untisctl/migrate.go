package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the archive database migrations",
	Long: `Apply pending migrations to the archive database (DATABASE_URL).
With --status the applied versions are listed instead, with --rollback the
latest migration is reverted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetBool("status")
		rollback, _ := cmd.Flags().GetBool("rollback")

		// opening the archive applies pending migrations
		migrator, err := rt.Migrator(cmd.Context())
		if err != nil {
			return err
		}

		switch {
		case rollback:
			version, err := migrator.Rollback(cmd.Context())
			if err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			fmt.Printf("Rolled back migration %s\n", timeStyle.Render(fmt.Sprint(version)))
		case status:
			migrations, err := migrator.Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(titleStyle.Render("Migrations"))
			for _, m := range migrations {
				state := warnStyle.Render("pending")
				if m.IsApplied {
					state = timeStyle.Render("applied " + m.AppliedAt.Format("2006-01-02 15:04"))
				}
				fmt.Printf("%4d  %-32s %s\n", m.Version, m.Name, state)
			}
		default:
			fmt.Println("Database is up to date.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("status", false, "List migrations and whether they are applied")
	migrateCmd.Flags().Bool("rollback", false, "Revert the latest applied migration")
	migrateCmd.MarkFlagsMutuallyExclusive("status", "rollback")
}
