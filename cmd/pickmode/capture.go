package main

import (
	"fmt"
	"image"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/v0xg/pickmode/internal/capture"
	"github.com/v0xg/pickmode/internal/overlay"
)

func newCaptureCmd() *cobra.Command {
	var (
		output   string
		fps      int
		maxWidth uint
	)
	cmd := &cobra.Command{
		Use:   "capture <url>",
		Short: "Render the stored selection as an animated GIF or a PNG",
		Long: `capture opens the page, restores the stored selection and writes one frame
per selected element with its highlight drawn on a screenshot. An output
name ending in .png writes a single image with every highlight.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			restore := true
			cfg.Picker.PersistSelection = &restore

			pc := cfg.PickerConfig()
			c, err := overlay.ParseColor(pc.HighlightColor)
			if err != nil {
				return err
			}
			st := capture.Style{Color: c, Opacity: pc.HighlightOpacity, BorderWidth: pc.BorderWidth}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			n := newNotifier(os.Stderr)
			ps, err := openPage(ctx, cfg, args[0], n.hooks())
			if err != nil {
				return err
			}
			defer ps.Close()

			// The live overlay must not show up in the screenshot.
			ps.engine.Disable()
			selected := ps.engine.SelectedElements()
			if len(selected) == 0 {
				return fmt.Errorf("no stored selection for this page (run pick first)")
			}
			rects := selectedRects(selected)

			step("Capturing %d elements... ", len(rects))
			shot, err := ps.browser.Screenshot()
			stepDone(err)
			if err != nil {
				return err
			}

			var frames []image.Image
			if capture.IsPNG(output) {
				frames = []image.Image{capture.Combine(shot, rects, st)}
			} else {
				frames = capture.Annotate(shot, rects, st)
			}

			step("Writing %s (%d frames)... ", output, len(frames))
			size, err := capture.WriteFile(output, frames, capture.Options{FPS: fps, MaxWidth: maxWidth})
			stepDone(err)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "✓ Saved to %s (%.1f KB)\n", output, float64(size)/1024)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "selection.gif", "Output filename (.gif or .png)")
	cmd.Flags().IntVar(&fps, "fps", 1, "Frames per second")
	cmd.Flags().UintVar(&maxWidth, "max-width", 800, "Scale frames down to this width (0 keeps the size)")
	return cmd
}
