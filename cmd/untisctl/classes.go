package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var classesYear int

var classesCmd = &cobra.Command{
	Use:   "classes",
	Short: "List the classes of a school year",
	Long:  `List the classes of the given school year, or of the current one when --year is omitted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		classes, err := rt.Sessions.Classes(cmd.Context(), schoolName, classesYear)
		if err != nil {
			return fmt.Errorf("could not fetch classes: %w", err)
		}

		title := "Classes"
		if classesYear != 0 {
			title = fmt.Sprintf("Classes in school year %d", classesYear)
		}
		fmt.Println(titleStyle.Render(title))

		if len(classes) == 0 {
			fmt.Println("No classes found.")
			return nil
		}
		for _, c := range classes {
			fmt.Printf("%s  %-10s %s\n", dimStyle.Render(fmt.Sprintf("%6d", c.ID)), c.Name, infoStyle.Render(c.LongName))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classesCmd)
	classesCmd.Flags().IntVarP(&classesYear, "year", "y", 0, "School year id, defaults to the current school year")
}
