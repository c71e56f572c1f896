// Command jobgen writes the skeleton of a new job type.
//
//	jobgen <TypeName> [package] [dir]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"redis-job-worker/internal/scaffold"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "jobgen <TypeName> [package] [dir]",
		Short:         "Generate a job type stub",
		Args:          cobra.RangeArgs(1, 3),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg, dir := scaffold.DefaultPackage, scaffold.DefaultDir
			if len(args) > 1 {
				pkg = args[1]
			}
			if len(args) > 2 {
				dir = args[2]
			}

			res, err := scaffold.Write(dir, args[0], pkg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.Created {
				fmt.Fprintf(out, "Created job directory: %s\n", dir)
			}
			fmt.Fprintln(out, "Job successfully generated!")
			fmt.Fprintf(out, "File: %s\n", res.Path)
			fmt.Fprintf(out, "Type: %s.%s\n", res.Package, res.Type)
			return nil
		},
	}
}
