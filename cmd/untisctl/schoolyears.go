package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roosterhub/untis-connector/pkg/untisdate"
)

var refreshReference bool

var schoolYearsCmd = &cobra.Command{
	Use:   "schoolyears",
	Short: "List the school years of a school",
	RunE: func(cmd *cobra.Command, args []string) error {
		if refreshReference {
			if err := rt.Sessions.RefreshReference(cmd.Context(), schoolName); err != nil {
				return fmt.Errorf("could not refresh cached reference data: %w", err)
			}
		}

		years, err := rt.Sessions.SchoolYears(cmd.Context(), schoolName)
		if err != nil {
			return fmt.Errorf("could not fetch school years: %w", err)
		}

		fmt.Println(titleStyle.Render("School years"))
		if len(years) == 0 {
			fmt.Println("No school years configured.")
			return nil
		}
		for _, y := range years {
			fmt.Printf("%s  %-12s %s\n",
				dimStyle.Render(fmt.Sprintf("%5d", y.ID)),
				y.Name,
				timeStyle.Render(untisdate.FormatISODate(untisdate.Date(y.StartDate))+" to "+untisdate.FormatISODate(untisdate.Date(y.EndDate))),
			)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schoolYearsCmd)
	schoolYearsCmd.Flags().BoolVar(&refreshReference, "refresh", false, "Drop the cached reference data of the school first")
}
