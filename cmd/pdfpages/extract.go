package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drummonds/pdfpages/config"
	"github.com/drummonds/pdfpages/engine/extraction"
)

type extractSummary struct {
	Source    string   `json:"source"`
	OutputDir string   `json:"outputDir"`
	Pages     int      `json:"pages"`
	Files     []string `json:"files"`
}

func extractCmd() *cobra.Command {
	var out string
	var format string
	var workers int
	var renderer string
	var dpi float64
	var tempDir string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "extract <pdf>",
		Short: "Render each page of a PDF into numbered image files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pdfPath := args[0]
			extractConfig, logger := config.SetupCLI()
			injectGlobals(logger)

			flags := cmd.Flags()
			if flags.Changed("format") {
				extractConfig.ImageFormat = format
			}
			if flags.Changed("workers") {
				extractConfig.WorkerPoolSize = workers
			}
			if flags.Changed("renderer") {
				extractConfig.Renderer = renderer
			}
			if flags.Changed("dpi") {
				extractConfig.RenderDPI = dpi
			}
			if flags.Changed("temp-dir") {
				extractConfig.TempRoot = tempDir
			}
			if out == "" {
				out = extraction.DefaultOutputDir(pdfPath)
			}

			extractor, err := extraction.New(extractConfig.Extraction(), extractConfig.Renderer)
			if err != nil {
				return err
			}
			defer extractor.Close()

			sink := extraction.NewDirSink(out, extractor.Config().ImageFormat)
			// fail before rendering if the output path is unusable
			if err := extraction.EnsureOutputDir(out); err != nil {
				return err
			}

			doc, err := extraction.LoadFile(pdfPath)
			if err != nil {
				return err
			}
			defer doc.Close()

			var progress extraction.ProgressFunc
			if !quiet {
				stderr := cmd.ErrOrStderr()
				progress = func(done, total int) {
					fmt.Fprintf(stderr, "\rrendered %d/%d", done, total)
					if done == total {
						fmt.Fprintln(stderr)
					}
				}
			}
			images, err := extractor.ExtractAllProgress(cmd.Context(), doc, progress)
			if err != nil {
				return err
			}
			if err := sink.Persist(cmd.Context(), images); err != nil {
				return err
			}

			summary := extractSummary{Source: pdfPath, OutputDir: out, Pages: len(images), Files: make([]string, len(images))}
			for i := range images {
				summary.Files[i] = sink.PathFor(i)
			}
			b, _ := json.MarshalIndent(summary, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory for the images (default: images/ next to the PDF)")
	cmd.Flags().StringVar(&format, "format", extraction.DefaultImageFormat, "image format: png|jpg|gif|tif|bmp")
	cmd.Flags().IntVar(&workers, "workers", 0, "pages rendered at once (default: number of CPUs)")
	cmd.Flags().StringVar(&renderer, "renderer", "pdfium", "rasterizer backend: pdfium|fitz")
	cmd.Flags().Float64Var(&dpi, "dpi", 72, "render resolution")
	cmd.Flags().StringVar(&tempDir, "temp-dir", "", "root for scratch directories (default: system temp dir)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not report progress")
	return cmd
}

func pagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pages <pdf>",
		Short: "Print the number of pages in a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger := config.SetupCLI()
			injectGlobals(logger)

			doc, err := extraction.LoadFile(args[0])
			if err != nil {
				return err
			}
			defer doc.Close()
			fmt.Fprintln(cmd.OutOrStdout(), doc.PageCount())
			return nil
		},
	}
}
