package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/motorpass/internal/imageproc"
	"github.com/MeKo-Tech/motorpass/internal/verify"
)

// errRejected is returned with --strict when the rider is not verified.
var errRejected = errors.New("rider not verified")

var verifyCmd = &cobra.Command{
	Use:   "verify IMAGE",
	Short: "Verify a rider against a photo of their driver's license",
	Long: `Read the license in IMAGE, match the printed name against --name and
combine it with the helmet, credential and expiration signals.

Supported formats: JPEG, PNG, BMP, WebP, HEIC, PDF (first embedded image)

Examples:
  motorpass verify license.jpg --name "Juan Dela Cruz" --helmet --credential 82
  motorpass verify license.heic --name "Ana Reyes" --profile guest --format json
  motorpass verify scan.pdf --name "Juan Dela Cruz" --helmet --credential 90 --strict`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		name, _ := cmd.Flags().GetString("name")
		profileName, _ := cmd.Flags().GetString("profile")
		docType, _ := cmd.Flags().GetString("document-type")
		helmet, _ := cmd.Flags().GetBool("helmet")
		credential, _ := cmd.Flags().GetFloat64("credential")
		strict, _ := cmd.Flags().GetBool("strict")

		profile, err := verify.ParseProfile(profileName)
		if err != nil {
			return err
		}
		if credential < 0 || credential > 100 {
			return fmt.Errorf("credential confidence must be between 0 and 100, got %.1f", credential)
		}

		var expirationOK *bool
		if cmd.Flags().Changed("expiration-ok") {
			v, _ := cmd.Flags().GetBool("expiration-ok")
			expirationOK = &v
		}

		src, err := imageproc.Open(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		p, err := buildPipeline(cfg)
		if err != nil {
			return err
		}

		out := p.verifier.Verify(cmd.Context(), verify.Request{
			Image:                src.Data,
			Identity:             verify.Identity{Name: name, ExpectedDocumentType: docType},
			Profile:              profile,
			HelmetOK:             helmet,
			CredentialConfidence: credential,
			ExpirationOK:         expirationOK,
		})
		if err := writeOutput(cmd, cfg, out); err != nil {
			return err
		}
		if strict && !out.Verified {
			return fmt.Errorf("%w: %s", errRejected, out.Reason)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("name", "", "registered rider name to match against the license")
	verifyCmd.Flags().String("profile", "student", "rider profile (student, staff, vip, guest)")
	verifyCmd.Flags().String("document-type", "", "document type the rider registered with")
	verifyCmd.Flags().Bool("helmet", false, "the helmet check passed")
	verifyCmd.Flags().Float64("credential", 0, "credential (fingerprint) match confidence, 0-100")
	verifyCmd.Flags().Bool("expiration-ok", true, "expiration verdict from the registration record; omit to use the card")
	verifyCmd.Flags().Bool("strict", false, "exit with an error when the rider is not verified")
	_ = verifyCmd.MarkFlagRequired("name")
}
