package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/imazen/zencodecs"
	"github.com/imazen/zencodecs/core"
)

var batchFlags struct {
	outDir string
	format string
	jobs   int
}

var batchCmd = &cobra.Command{
	Use:   "batch DIR",
	Short: "Convert every image in a directory concurrently",
	Long: `Converts all recognized images under DIR into --out-dir, reusing the
convert command's quality flags.  Inputs that produce byte-identical output
are written once; duplicates are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.StringVarP(&batchFlags.outDir, "out-dir", "o", "", "output directory (required)")
	f.StringVarP(&batchFlags.format, "format", "f", "", "target format; default: auto per image")
	f.IntVarP(&batchFlags.jobs, "jobs", "j", 0, "parallel conversions (default: CPU count)")
	f.IntVarP(&convertFlags.quality, "quality", "q", 0, "quality 1-100")
	f.StringVar(&convertFlags.preset, "preset", "", "quality preset")
	f.BoolVar(&convertFlags.lossless, "lossless", false, "lossless output")
	_ = batchCmd.MarkFlagRequired("out-dir")
	rootCmd.AddCommand(batchCmd)
}

type batchResult struct {
	in        string
	out       string
	bytes     int
	dupOf     string
	encDigest uint64
	err       error
}

func runBatch(cmd *cobra.Command, args []string) error {
	convertFlags.format = batchFlags.format
	if err := os.MkdirAll(batchFlags.outDir, 0o755); err != nil {
		return err
	}

	inputs, err := collectImages(args[0])
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no recognized images under %s", args[0])
	}

	jobs := batchFlags.jobs
	if jobs <= 0 {
		jobs = viper.GetInt("jobs")
	}
	if jobs < 1 {
		jobs = 1
	}

	results := runWorkers(cmd.Context(), args[0], inputs, jobs)

	// Dedupe on the encoded digest: the first occurrence is kept, later
	// identical outputs are dropped.
	seen := make(map[uint64]string, len(results))
	var converted, dupes, failures int
	for i := range results {
		r := &results[i]
		if r.err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "zcimg: %v\n", r.err)
			continue
		}
		if prev, ok := seen[r.digest()]; ok {
			r.dupOf = prev
			dupes++
			_ = os.Remove(r.out)
			fmt.Fprintf(os.Stderr, "zcimg: %s: identical to %s, skipped\n", r.in, prev)
			continue
		}
		seen[r.digest()] = r.out
		converted++
	}

	fmt.Printf("%d converted, %d duplicates, %d failed\n", converted, dupes, failures)
	if failures > 0 {
		return fmt.Errorf("%d of %d conversions failed", failures, len(inputs))
	}
	return nil
}

// digest re-hashes the written file name plus size only when encode-level
// digests are unavailable; normal results carry the encoder's own digest.
func (r *batchResult) digest() uint64 {
	if r.encDigest != 0 {
		return r.encDigest
	}
	return xxhash.Sum64String(fmt.Sprintf("%s:%d", r.out, r.bytes))
}

func runWorkers(ctx context.Context, root string, inputs []string, jobs int) []batchResult {
	results := make([]batchResult, len(inputs))
	work := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < jobs; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				results[i] = convertForBatch(ctx, root, inputs[i])
			}
		}()
	}
	for i := range inputs {
		work <- i
	}
	close(work)
	wg.Wait()
	return results
}

func convertForBatch(ctx context.Context, root, inPath string) batchResult {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return batchResult{in: inPath, err: err}
	}

	dec := zencodecs.DecodeConfig{}
	out, err := dec.NewRequest(data).Decode(ctx)
	if err != nil {
		return batchResult{in: inPath, err: fmt.Errorf("%s: %w", inPath, err)}
	}
	format, quality, effort, lossless, err := resolveEncodeArgs()
	if err != nil {
		return batchResult{in: inPath, err: err}
	}
	res, err := zencodecs.EncodeConfig{
		Format:   format,
		Quality:  quality,
		Effort:   effort,
		Lossless: lossless,
	}.NewRequest().WithMetadata(out.Metadata()).Encode(ctx, out.Pixels)
	if err != nil {
		return batchResult{in: inPath, err: fmt.Errorf("%s: %w", inPath, err)}
	}

	outPath, err := batchOutputPath(batchFlags.outDir, root, inPath, res.Format.Extensions()[0])
	if err != nil {
		return batchResult{in: inPath, err: err}
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return batchResult{in: inPath, err: err}
	}
	if err := os.WriteFile(outPath, res.Data, 0o644); err != nil {
		return batchResult{in: inPath, err: err}
	}
	return batchResult{in: inPath, out: outPath, bytes: len(res.Data), encDigest: res.Digest}
}

// batchOutputPath mirrors the input's position under root into outDir, so
// same-named files in different subdirectories keep distinct outputs.
func batchOutputPath(outDir, root, inPath, ext string) (string, error) {
	rel, err := filepath.Rel(root, inPath)
	if err != nil {
		return "", fmt.Errorf("%s: %w", inPath, err)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + "." + ext
	return filepath.Join(outDir, rel), nil
}

// collectImages walks dir and keeps files whose extension maps to a known
// format.
func collectImages(dir string) ([]string, error) {
	var inputs []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if zencodecs.FromExtension(filepath.Ext(path)) != core.FormatUnknown {
			inputs = append(inputs, path)
		}
		return nil
	})
	return inputs, err
}
