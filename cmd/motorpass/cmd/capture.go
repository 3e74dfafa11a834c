package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/motorpass/internal/capture"
	"github.com/MeKo-Tech/motorpass/internal/imageproc"
	"github.com/MeKo-Tech/motorpass/internal/report"
	"github.com/MeKo-Tech/motorpass/internal/verify"
)

var captureCmd = &cobra.Command{
	Use:   "capture DIR",
	Short: "Run the capture loop over a directory of camera frames",
	Long: `Play back the images in DIR as camera frames and run the capture loop
on them: scan the card region every few frames, wait for a stable reading and
snap the frame once it has been READY for the capture delay.

The captured frame is written as JPEG to --save. With --name it is also
verified like "motorpass verify" would.

Examples:
  motorpass capture ./frames
  motorpass capture ./frames --interval 33ms --loop --save card.jpg
  motorpass capture ./frames --name "Juan Dela Cruz" --helmet --credential 82`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *GetConfig()

		interval, _ := cmd.Flags().GetDuration("interval")
		loop, _ := cmd.Flags().GetBool("loop")
		save, _ := cmd.Flags().GetString("save")
		name, _ := cmd.Flags().GetString("name")
		profileName, _ := cmd.Flags().GetString("profile")
		helmet, _ := cmd.Flags().GetBool("helmet")
		credential, _ := cmd.Flags().GetFloat64("credential")
		if cmd.Flags().Changed("timeout") {
			cfg.Capture.SessionTimeout, _ = cmd.Flags().GetDuration("timeout")
		}

		profile, err := verify.ParseProfile(profileName)
		if err != nil {
			return err
		}

		opts := []capture.DirOption{capture.WithInterval(interval)}
		if loop {
			opts = append(opts, capture.WithLoop())
		}
		source, err := capture.NewDirSource(args[0], opts...)
		if err != nil {
			return err
		}

		p, err := buildPipeline(&cfg)
		if err != nil {
			return err
		}
		logger := slog.Default()
		ctrl := p.newController(&cfg,
			capture.WithLogger(logger),
			capture.OnTransition(func(t capture.Transition) {
				logger.Info("capture state", "from", string(t.From), "to", string(t.To), "frame", t.Frame)
			}),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("capture started", "session", ctrl.Session().ID, "frames", source.Len())
		sess, err := ctrl.Run(ctx, source)
		if err != nil {
			return fmt.Errorf("capture: %w", err)
		}

		rep := report.CaptureReport{Session: sess}
		if sess.State == capture.StateCaptured && sess.Captured != nil {
			jpeg, err := imageproc.EncodeJPEG(sess.Captured.Image, 92)
			if err != nil {
				return fmt.Errorf("encode captured frame: %w", err)
			}
			if save != "" {
				if err := os.MkdirAll(filepath.Dir(save), 0o755); err != nil {
					return fmt.Errorf("create output directory: %w", err)
				}
				if err := os.WriteFile(save, jpeg, 0o600); err != nil {
					return fmt.Errorf("save captured frame: %w", err)
				}
				rep.ImagePath = save
			}
			if name != "" {
				out := p.verifier.Verify(context.WithoutCancel(ctx), verify.Request{
					Image:                jpeg,
					Identity:             verify.Identity{Name: name},
					Profile:              profile,
					HelmetOK:             helmet,
					CredentialConfidence: credential,
				})
				rep.Outcome = &out
			}
		}
		return writeOutput(cmd, &cfg, rep)
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().Duration("interval", 0, "delay between frames, e.g. 33ms for 30 fps")
	captureCmd.Flags().Bool("loop", false, "replay the directory until the session ends")
	captureCmd.Flags().Duration("timeout", 60*time.Second, "session timeout (overrides capture.session_timeout)")
	captureCmd.Flags().String("save", "", "write the captured frame to this JPEG file")
	captureCmd.Flags().String("name", "", "verify the captured license against this rider name")
	captureCmd.Flags().String("profile", "student", "rider profile (student, staff, vip, guest)")
	captureCmd.Flags().Bool("helmet", false, "the helmet check passed")
	captureCmd.Flags().Float64("credential", 0, "credential (fingerprint) match confidence, 0-100")
}
