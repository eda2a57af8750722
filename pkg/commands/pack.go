package commands

import (
	"github.com/spf13/cobra"

	"github.com/packfs/asar/pkg/archive"
)

type PackCmdOptions struct {
	InputPath  string
	OutputFile string
	Unpack     []string
}

var packOpts = &PackCmdOptions{}

var PackCmd = &cobra.Command{
	Use:   "pack",
	Short: "Pack a directory into an archive",
	RunE:  runPack,
}

func init() {
	PackCmd.Flags().StringVarP(&packOpts.InputPath, "input", "i", "", "Input directory to archive")
	PackCmd.Flags().StringVarP(&packOpts.OutputFile, "output", "o", "out.asar", "Output file for the archive")
	PackCmd.Flags().StringSliceVar(&packOpts.Unpack, "unpack", nil, "Archive-relative paths to store unpacked")
	PackCmd.MarkFlagRequired("input")
}

func runPack(cmd *cobra.Command, args []string) error {
	return archive.Create(archive.CreateOptions{
		SourcePath: packOpts.InputPath,
		OutputPath: packOpts.OutputFile,
		Unpack:     packOpts.Unpack,
	})
}
