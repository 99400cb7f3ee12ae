package main

import (
	"context"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gogpu/strata"
)

type renderOptions struct {
	output string
	stats  bool
}

func newRenderCmd(root *rootOptions) *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render SCENE",
		Short: "Render a scene file to PNG",
		Long: `Renders a YAML scene file with the software rasterizer and writes the
frame as PNG. Per-shape problems (degenerate outlines, clip nesting past
max_clip_depth, unknown textures) do not fail the render; use --stats to
list them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), cmd.OutOrStdout(), root, opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output PNG (default: the scene path with .png)")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "print frame statistics and diagnostics")
	return cmd
}

func runRender(ctx context.Context, out io.Writer, root *rootOptions, opts *renderOptions, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	scene, err := loadScene(path)
	if err != nil {
		return err
	}
	base, err := root.loadConfig()
	if err != nil {
		return err
	}
	cfg, err := scene.config(base)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	w := uint32(float64(scene.Width)*scene.Scale + 0.5)  //nolint:gosec // G115: scene sizes fit uint32
	h := uint32(float64(scene.Height)*scene.Scale + 0.5) //nolint:gosec // G115: scene sizes fit uint32
	r, err := strata.New(strata.Target{Width: w, Height: h, ScaleFactor: scene.Scale}, cfg,
		strata.WithBackend(strata.BackendSoftware))
	if err != nil {
		return err
	}
	defer r.Close()

	if err := scene.build(r, filepath.Dir(path)); err != nil {
		return err
	}
	img, err := r.RenderToImage(ctx)
	if err != nil {
		return err
	}

	output := opts.output
	if output == "" {
		output = strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", output, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	if opts.stats {
		printStats(out, r.LastFrameStats())
	}
	return nil
}

func printStats(out io.Writer, s strata.FrameStats) {
	fmt.Fprintf(out, "backend: %s\n", s.Backend)
	fmt.Fprintf(out, "instances: %d\ntriangles: %d\ncommands: %d\n", s.Instances, s.Triangles, s.Commands)
	fmt.Fprintf(out, "max clip ref: %d\n", s.MaxClipRef)
	sw := s.Switches
	fmt.Fprintf(out, "pipeline switches: %d (stencil +%d -%d, draw %d, composite %d, effect %d)\n",
		sw.Total, sw.ToStencilIncrement, sw.ToStencilDecrement, sw.ToLeafDraw, sw.ToComposite, sw.ToEffect)
	fmt.Fprintf(out, "time: %v (tessellate %v, prepare %v, execute %v)\n",
		s.Timings.Total, s.Timings.Tessellate, s.Timings.Prepare, s.Timings.Execute)
	for _, d := range s.Diagnostics {
		fmt.Fprintf(out, "diagnostic: %v\n", d)
	}
}
