package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/drummonds/pdfpages/config"
	"github.com/drummonds/pdfpages/engine/extraction"
	"github.com/drummonds/pdfpages/engine/pdfrenderer"
	"github.com/drummonds/pdfpages/internal/build"
)

// injectGlobals injects the logger into the packages the CLI uses
func injectGlobals(logger *slog.Logger) {
	config.Logger = logger
	extraction.Logger = logger
	pdfrenderer.Logger = logger
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pdfpages",
		Short:         "Render every page of a PDF to an image",
		Version:       build.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(extractCmd())
	root.AddCommand(pagesCmd())
	return root
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
