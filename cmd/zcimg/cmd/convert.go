package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/imazen/zencodecs"
	"github.com/imazen/zencodecs/core"
	"github.com/imazen/zencodecs/pipeline"
)

var convertFlags struct {
	output   string
	format   string
	quality  int
	effort   int
	preset   string
	lossless bool
	width    int
	height   int
	strip    bool
	force    bool
}

var convertCmd = &cobra.Command{
	Use:   "convert FILE",
	Short: "Decode, optionally resize, and re-encode one image",
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

func init() {
	f := convertCmd.Flags()
	f.StringVarP(&convertFlags.output, "output", "o", "", "output path (default: input name with new extension)")
	f.StringVarP(&convertFlags.format, "format", "f", "", "target format (jpeg, png, gif, webp, bmp, avif, jxl); default: auto")
	f.IntVarP(&convertFlags.quality, "quality", "q", 0, "quality 1-100 (overrides --preset)")
	f.IntVar(&convertFlags.effort, "effort", 0, "encoding effort 1-10")
	f.StringVar(&convertFlags.preset, "preset", "", "quality preset: lossless, near-lossless, high, balanced, small")
	f.BoolVar(&convertFlags.lossless, "lossless", false, "shorthand for --preset lossless")
	f.IntVarP(&convertFlags.width, "width", "w", 0, "target width (0 = keep)")
	f.IntVar(&convertFlags.height, "height", 0, "target height (0 = keep)")
	f.BoolVar(&convertFlags.strip, "strip", false, "drop ICC/EXIF/XMP metadata")
	f.BoolVar(&convertFlags.force, "force", false, "overwrite existing output")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	out, written, err := convertOne(cmd.Context(), args[0], data)
	if err != nil {
		return err
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "[zcimg] %s: %d -> %d bytes (%s)\n",
			args[0], len(data), written, out)
	}
	fmt.Println(out)
	return nil
}

// convertOne runs the decode → resize → encode flow for one file and writes
// the result.  Shared with the batch command.
func convertOne(ctx context.Context, inPath string, data []byte) (string, int, error) {
	dec := zencodecs.DecodeConfig{Hooks: opHooks()}
	out, err := dec.NewRequest(data).Decode(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("%s: %w", inPath, err)
	}

	px := out.Pixels
	if convertFlags.width > 0 || convertFlags.height > 0 {
		px, err = resizePixels(px, convertFlags.width, convertFlags.height)
		if err != nil {
			return "", 0, fmt.Errorf("%s: %w", inPath, err)
		}
	}

	format, quality, effort, lossless, err := resolveEncodeArgs()
	if err != nil {
		return "", 0, err
	}

	cfg := zencodecs.EncodeConfig{
		Format:   format,
		Quality:  quality,
		Effort:   effort,
		Lossless: lossless,
		Hooks:    opHooks(),
	}
	req := cfg.NewRequest()
	if !convertFlags.strip {
		req = req.WithMetadata(out.Metadata())
	}
	res, err := req.Encode(ctx, px)
	if err != nil {
		return "", 0, fmt.Errorf("%s: %w", inPath, err)
	}

	outPath := convertFlags.output
	if outPath == "" {
		ext := res.Format.Extensions()[0]
		outPath = strings.TrimSuffix(inPath, filepath.Ext(inPath)) + "." + ext
	}
	if !convertFlags.force {
		if _, err := os.Stat(outPath); err == nil {
			return "", 0, fmt.Errorf("%s exists; use --force to overwrite", outPath)
		}
	}
	if err := os.WriteFile(outPath, res.Data, 0o644); err != nil {
		return "", 0, err
	}
	return outPath, len(res.Data), nil
}

// resolveEncodeArgs merges --quality/--preset/--lossless with config-file
// defaults.  An explicit quality always wins over a preset.
func resolveEncodeArgs() (zencodecs.Format, int, int, bool, error) {
	format := zencodecs.Format("")
	if convertFlags.format != "" {
		format = zencodecs.FromExtension(convertFlags.format)
		if format == core.FormatUnknown {
			return "", 0, 0, false, fmt.Errorf("unknown format %q", convertFlags.format)
		}
	}

	quality := convertFlags.quality
	if quality == 0 {
		quality = viper.GetInt("quality")
	}
	effort := convertFlags.effort
	if effort == 0 {
		effort = viper.GetInt("effort")
	}

	lossless := convertFlags.lossless
	presetName := convertFlags.preset
	if lossless && presetName == "" {
		presetName = "lossless"
	}
	if presetName != "" && quality == 0 {
		preset, err := parsePreset(presetName)
		if err != nil {
			return "", 0, 0, false, err
		}
		// Preset tables are per-format; unknown target defers to the
		// selected format's balanced tier via the encode path.
		target := format
		if target == "" {
			target = zencodecs.WebP
		}
		quality, lossless = preset.ForFormat(target)
	}
	return format, quality, effort, lossless, nil
}

func parsePreset(name string) (pipeline.QualityPreset, error) {
	switch strings.ToLower(name) {
	case "lossless":
		return pipeline.PresetLossless, nil
	case "near-lossless", "near":
		return pipeline.PresetNearLossless, nil
	case "high":
		return pipeline.PresetHighQuality, nil
	case "balanced":
		return pipeline.PresetBalanced, nil
	case "small":
		return pipeline.PresetSmallFile, nil
	}
	return 0, fmt.Errorf("unknown preset %q", name)
}

// resizePixels fits the image inside width x height, preserving aspect
// ratio.  One zero dimension means "derive from the other".
func resizePixels(px *zencodecs.PixelData, width, height int) (*zencodecs.PixelData, error) {
	img, err := pipeline.ToImage(px)
	if err != nil {
		return nil, err
	}
	switch {
	case width > 0 && height > 0:
		return pipeline.FromImage(imaging.Fit(img, width, height, imaging.Lanczos))
	case width > 0:
		return pipeline.FromImage(imaging.Resize(img, width, 0, imaging.Lanczos))
	default:
		return pipeline.FromImage(imaging.Resize(img, 0, height, imaging.Lanczos))
	}
}
