package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/packfs/asar/pkg/archive"
)

type ListCmdOptions struct {
	InputFile string
	Path      string
	Recursive bool
}

var listOpts = &ListCmdOptions{}

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the entries of an archive",
	RunE:  runList,
}

func init() {
	ListCmd.Flags().StringVarP(&listOpts.InputFile, "input", "i", "", "Input archive to list")
	ListCmd.Flags().StringVarP(&listOpts.Path, "path", "p", "", "Directory inside the archive to list from")
	ListCmd.Flags().BoolVarP(&listOpts.Recursive, "recursive", "r", true, "Recurse into directories")
	ListCmd.MarkFlagRequired("input")
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := archive.Open(listOpts.InputFile)
	if err != nil {
		return err
	}

	names, err := a.ListFiles(listOpts.Path, listOpts.Recursive)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}
