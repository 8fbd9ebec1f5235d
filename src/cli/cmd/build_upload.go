package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/sofmeright/dockwright/src/source"
)

var (
	upFile     string
	upName     string
	upDir      string
	upRevision string
)

var buildUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Build from a source archive (zip, tar, tar.gz)",
	Long: `Build from an uploaded source archive.

The archive format is taken from --name (or the file name) and falls back to
content sniffing. Use --file - to read the archive from stdin, or --dir to
pack a local directory the same way an upload would be.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch {
		case upFile != "" && upDir != "":
			return errors.New("--file and --dir are mutually exclusive")
		case upDir != "":
			return runBuild(cmd, &source.Directory{Path: upDir, Revision: upRevision})
		case upFile != "":
			return runBuild(cmd, &source.Archive{
				Path:     upFile,
				Reader:   cmd.InOrStdin(),
				Name:     upName,
				Revision: upRevision,
			})
		default:
			return errors.New("one of --file or --dir is required")
		}
	},
}

func init() {
	buildUploadCmd.Flags().StringVarP(&upFile, "file", "f", "", "source archive path, or - for stdin")
	buildUploadCmd.Flags().StringVar(&upName, "name", "", "declared archive file name (selects the format)")
	buildUploadCmd.Flags().StringVar(&upDir, "dir", "", "pack and build a local directory")
	buildUploadCmd.Flags().StringVar(&upRevision, "revision", "", "VCS revision of the uploaded source")

	buildCmd.AddCommand(buildUploadCmd)
}
