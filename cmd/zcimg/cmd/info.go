package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/imazen/zencodecs"
)

var infoJSON bool

var infoCmd = &cobra.Command{
	Use:   "info FILE...",
	Short: "Probe image headers without decoding pixels",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInfo,
}

func init() {
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(infoCmd)
}

type infoReport struct {
	File         string `json:"file"`
	Format       string `json:"format"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	HasAlpha     bool   `json:"has_alpha"`
	HasAnimation bool   `json:"has_animation"`
	FrameCount   int    `json:"frame_count,omitempty"`
	ICCBytes     int    `json:"icc_bytes,omitempty"`
	EXIFBytes    int    `json:"exif_bytes,omitempty"`
	XMPBytes     int    `json:"xmp_bytes,omitempty"`
	FileBytes    int64  `json:"file_bytes"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	reports := make([]infoReport, 0, len(args))
	var firstErr error

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "zcimg: %s: %v\n", path, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		info, err := zencodecs.Probe(ctx, data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "zcimg: %s: %v\n", path, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		reports = append(reports, infoReport{
			File:         path,
			Format:       string(info.Format),
			Width:        info.Width,
			Height:       info.Height,
			HasAlpha:     info.HasAlpha,
			HasAnimation: info.HasAnimation,
			FrameCount:   info.FrameCount,
			ICCBytes:     len(info.ICCProfile),
			EXIFBytes:    len(info.EXIF),
			XMPBytes:     len(info.XMP),
			FileBytes:    int64(len(data)),
		})
	}

	if infoJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			fmt.Printf("%s: %s %dx%d", r.File, r.Format, r.Width, r.Height)
			if r.HasAlpha {
				fmt.Print(" alpha")
			}
			if r.HasAnimation {
				fmt.Printf(" animated(%d frames)", r.FrameCount)
			}
			if r.ICCBytes > 0 {
				fmt.Print(" icc")
			}
			if r.EXIFBytes > 0 {
				fmt.Print(" exif")
			}
			if r.XMPBytes > 0 {
				fmt.Print(" xmp")
			}
			fmt.Printf(" %dB\n", r.FileBytes)
		}
	}
	return firstErr
}
