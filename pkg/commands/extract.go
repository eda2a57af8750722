package commands

import (
	"os"

	log "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/packfs/asar/pkg/archive"
)

type ExtractCmdOptions struct {
	InputFile  string
	OutputPath string
	FilePath   string
}

var extractOpts = &ExtractCmdOptions{}

var ExtractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract an archive to the specified path",
	RunE:  runExtract,
}

func init() {
	ExtractCmd.Flags().StringVarP(&extractOpts.InputFile, "input", "i", "", "Input archive to extract")
	ExtractCmd.Flags().StringVarP(&extractOpts.OutputPath, "output", "o", ".", "Output path for the extraction")
	ExtractCmd.Flags().StringVarP(&extractOpts.FilePath, "file", "f", "", "Extract a single file to stdout")
	ExtractCmd.MarkFlagRequired("input")
}

func runExtract(cmd *cobra.Command, args []string) error {
	a, err := archive.Open(extractOpts.InputFile)
	if err != nil {
		return err
	}

	if extractOpts.FilePath != "" {
		data, err := a.ReadFile(extractOpts.FilePath, true)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}

	log.Info().Msgf("extracting archive: %s", extractOpts.InputFile)
	if err := a.ExtractAll(extractOpts.OutputPath); err != nil {
		return err
	}
	log.Info().Msg("archive extracted successfully")
	return nil
}
