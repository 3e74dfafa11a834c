package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/motorpass/internal/fields"
	"github.com/MeKo-Tech/motorpass/internal/match"
)

var parseCmd = &cobra.Command{
	Use:   "parse [FILE]",
	Short: "Parse license fields out of recognized text",
	Long: `Parse the name, expiration date and restricted-document markers out of
OCR text read from FILE, or from stdin when FILE is omitted or "-".

Examples:
  motorpass parse ocr.txt
  motorpass extract license.jpg --format json | jq -r .raw_text | motorpass parse`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readText(cmd, args)
		if err != nil {
			return err
		}
		return writeOutput(cmd, GetConfig(), fields.Parse(text))
	},
}

var matchCmd = &cobra.Command{
	Use:   "match REFERENCE CANDIDATE...",
	Short: "Score how well recognized text matches a rider name",
	Long: `Score one or more candidate strings against the reference name. With
several candidates each is treated as a recognized line and the best one wins.

Examples:
  motorpass match "Juan Dela Cruz" "DELA CRUZ, JUAN"
  motorpass match "Juan Dela Cruz" "REPUBLIC OF THE PHILIPPINES" "JUAN D CRUZ"`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reference, candidates := args[0], args[1:]
		var res match.Result
		if len(candidates) == 1 {
			res = match.Match(candidates[0], reference)
		} else {
			res = match.MatchLines(reference, candidates)
		}
		return writeOutput(cmd, GetConfig(), res)
	},
}

func readText(cmd *cobra.Command, args []string) (string, error) {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return "", fmt.Errorf("open %s: %w", args[0], err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", errors.New("no text to parse")
	}
	return string(data), nil
}

func init() {
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(matchCmd)
}
