package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/motorpass/internal/extract"
	"github.com/MeKo-Tech/motorpass/internal/imageproc"
)

var extractCmd = &cobra.Command{
	Use:   "extract IMAGE",
	Short: "Print the raw text read from a license image",
	Long: `Run text extraction only: cache lookup, OCR.space when online and
configured, then the local engine.

Examples:
  motorpass extract license.jpg
  motorpass extract license.png --guest --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		guest, _ := cmd.Flags().GetBool("guest")
		name, _ := cmd.Flags().GetString("name")

		src, err := imageproc.Open(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		p, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		res, err := p.extractor.Extract(cmd.Context(), src.Data, extract.Hints{Guest: guest, ReferenceName: name})
		if err != nil {
			return fmt.Errorf("extract text: %w", err)
		}
		return writeOutput(cmd, cfg, res)
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().Bool("guest", false, "use the shorter guest time budget")
	extractCmd.Flags().String("name", "", "reference name; lets local recognition stop early on a match")
}
