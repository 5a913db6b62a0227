package main

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/ironsheep/ocr-engine/internal/imaging"
	"github.com/ironsheep/ocr-engine/internal/logger"
	"github.com/ironsheep/ocr-engine/pkg/ocr"
)

type recognizeOptions struct {
	detailed    bool
	asJSON      bool
	annotateDir string
	boxColor    string
}

// fileResult is the per-image output of the recognize command.
type fileResult struct {
	File   string        `json:"file"`
	Status string        `json:"status"`
	Texts  []string      `json:"texts,omitempty"`
	Boxes  []ocr.TextBox `json:"boxes,omitempty"`
}

func (c *cli) newRecognizeCmd() *cobra.Command {
	var opts recognizeOptions

	cmd := &cobra.Command{
		Use:   "recognize [image or glob...]",
		Short: "Read the text in one or more images",
		Example: `  # Print the text of every line in scan.png
  ocr-engine recognize scan.png

  # Boxes and confidences for all PNGs below ./scans, as JSON
  ocr-engine recognize --detailed --json 'scans/**/*.png'

  # Also write copies with the detected regions outlined
  ocr-engine recognize --annotate out/ 'scans/*.jpg'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRecognize(cmd.OutOrStdout(), args, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.detailed, "detailed", "d", false, "Include boxes and confidences")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&opts.annotateDir, "annotate", "", "Write annotated PNGs to this directory")
	cmd.Flags().StringVar(&opts.boxColor, "box-color", imaging.DefaultBoxColor, "Outline color for --annotate")
	c.addModelFlags(cmd)
	return cmd
}

func (c *cli) runRecognize(out io.Writer, patterns []string, opts recognizeOptions) error {
	log := logger.WithComponent("recognize")

	files, err := expandPatterns(patterns)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no images match %s", strings.Join(patterns, " "))
	}

	m := c.models()
	h := ocr.CreateEngineWithConfig(m.Det, m.Rec, m.Dict, c.cfg)
	if h == ocr.NullHandle {
		return fmt.Errorf("failed to create engine from %s, %s and %s", m.Det, m.Rec, m.Dict)
	}
	defer ocr.DestroyEngine(h)

	if opts.annotateDir != "" {
		if err := os.MkdirAll(opts.annotateDir, 0755); err != nil {
			return fmt.Errorf("failed to create annotate directory: %w", err)
		}
	}

	results := make([]fileResult, 0, len(files))
	failed := 0
	for _, file := range files {
		r := c.recognizeFile(h, file, opts)
		if r.Status != ocr.Success.String() {
			failed++
			log.Warn().Str("file", file).Str("status", r.Status).Msg("recognition failed")
		}
		if r.Status == ocr.Success.String() && opts.annotateDir != "" {
			if err := writeAnnotated(file, r.Boxes, opts); err != nil {
				log.Warn().Err(err).Str("file", file).Msg("failed to write annotated image")
			}
		}
		if !opts.detailed {
			r.Boxes = nil
		}
		results = append(results, r)
	}

	if err := printResults(out, results, opts); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(files))
	}
	return nil
}

func (c *cli) recognizeFile(h ocr.Handle, file string, opts recognizeOptions) fileResult {
	if !opts.detailed && opts.annotateDir == "" {
		res := ocr.RecognizeSimple(h, file)
		defer ocr.ReleaseSimpleResult(&res)
		return fileResult{File: file, Status: res.Status.String(), Texts: append([]string{}, res.Texts...)}
	}

	res := ocr.RecognizeDetailed(h, file)
	defer ocr.ReleaseDetailedResult(&res)
	r := fileResult{File: file, Status: res.Status.String(), Boxes: append([]ocr.TextBox{}, res.Boxes...)}
	for _, b := range res.Boxes {
		r.Texts = append(r.Texts, b.Text)
	}
	return r
}

// expandPatterns resolves globs (including **) to files. Arguments
// without glob syntax are kept as-is so a missing file is reported as a
// failed image rather than silently skipped.
func expandPatterns(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(f string) {
		if !seen[f] {
			seen[f] = true
			files = append(files, f)
		}
	}

	for _, p := range patterns {
		if !strings.ContainsAny(p, "*?[{") {
			add(p)
			continue
		}
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		for _, m := range matches {
			add(m)
		}
	}
	return files, nil
}

func writeAnnotated(file string, boxes []ocr.TextBox, opts recognizeOptions) error {
	img, _, err := imaging.Load(file)
	if err != nil {
		return err
	}
	annotations := make([]imaging.Annotation, len(boxes))
	for i, b := range boxes {
		annotations[i] = imaging.Annotation{Rect: boxRect(b), Label: b.Text}
	}
	out := imaging.Annotate(img, annotations, opts.boxColor)

	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)) + ".annotated.png"
	f, err := os.Create(filepath.Join(opts.annotateDir, name))
	if err != nil {
		return err
	}
	if err := png.Encode(f, out); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printResults(out io.Writer, results []fileResult, opts recognizeOptions) error {
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	multi := len(results) > 1
	for _, r := range results {
		if multi {
			fmt.Fprintf(out, "== %s\n", r.File)
		}
		if r.Status != ocr.Success.String() {
			fmt.Fprintf(out, "error: %s\n", r.Status)
			continue
		}
		if opts.detailed {
			for _, b := range r.Boxes {
				fmt.Fprintf(out, "[%d,%d %dx%d] det=%.3f rec=%.3f %s\n",
					b.Left, b.Top, b.Width, b.Height, b.DetConfidence, b.RecConfidence, b.Text)
			}
			continue
		}
		for _, text := range r.Texts {
			fmt.Fprintln(out, text)
		}
	}
	return nil
}

func boxRect(b ocr.TextBox) image.Rectangle {
	x, y := int(b.Left), int(b.Top)
	return image.Rect(x, y, x+int(b.Width), y+int(b.Height))
}
