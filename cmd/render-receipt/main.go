package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path"
	"strings"
	_ "time/tzdata"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/garyjia/clinic-receipts/internal/application/service"
	"github.com/garyjia/clinic-receipts/internal/config"
	"github.com/garyjia/clinic-receipts/internal/container"
	"github.com/garyjia/clinic-receipts/internal/domain/apperr"
	"github.com/garyjia/clinic-receipts/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config.yaml")
	receiptID := flag.String("receipt", "", "Receipt number to render, e.g. A000001/2025")
	copyIndex := flag.Int("copy", 0, "Copy index to (re)write; 0 picks the next free copy")
	paymentID := flag.Int64("payment", 0, "Payment the copy is issued for; 0 means the latest")
	statement := flag.Bool("statement", false, "Also export the installment statement workbook")
	thumbnail := flag.Bool("thumbnail", false, "Also write a JPEG preview of the first page")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	if *receiptID == "" {
		fmt.Fprintln(os.Stderr, "usage: render-receipt -receipt A000001/2025 [-copy N] [-payment ID] [-statement] [-thumbnail]")
		os.Exit(2)
	}

	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger, err := utils.NewLogger(utils.LoggerConfig{Level: level, OutputPath: "stderr", Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	os.Exit(run(cfg, logger, options{
		receiptID: *receiptID,
		copyIndex: *copyIndex,
		paymentID: *paymentID,
		statement: *statement,
		thumbnail: *thumbnail,
	}))
}

type options struct {
	receiptID string
	copyIndex int
	paymentID int64
	statement bool
	thumbnail bool
}

func run(cfg *config.Config, logger *zap.Logger, opts options) int {
	ctx := context.Background()

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create container: %v\n", err)
		return 1
	}
	if err := c.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		return 1
	}
	defer c.Close()

	receiptID := opts.receiptID
	render := service.RenderOptions{PaymentID: opts.paymentID}
	if opts.copyIndex > 0 {
		render.CopyIndex = &opts.copyIndex
	}

	services := c.Services()
	store := c.FileStorage()
	result, err := services.Document.Render(ctx, receiptID, render)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Render failed (%s): %v\n", apperr.KindOf(err), err)
		if apperr.IsRetryable(err) {
			return 75 // EX_TEMPFAIL
		}
		return 1
	}

	fullPath := store.GetFullPath(result.Path)
	stored, err := store.Read(ctx, result.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Rendered %s but could not read it back: %v\n", fullPath, err)
		return 1
	}
	report, err := services.Reader.Inspect(stored)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Rendered %s but could not read it back: %v\n", fullPath, err)
		return 1
	}
	if !report.Contains(receiptID) {
		fmt.Fprintf(os.Stderr, "Rendered %s does not carry receipt number %s\n", fullPath, receiptID)
		return 1
	}

	fmt.Printf("Wrote %s (copy p%02d, %d page(s))\n", fullPath, result.CopyIndex, report.PageCount)

	if opts.thumbnail {
		img, err := services.Reader.Thumbnail(stored)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Preview failed: %v\n", err)
			return 1
		}
		out := strings.TrimSuffix(result.Path, ".pdf") + ".jpg"
		if err := store.Save(ctx, out, img); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write preview: %v\n", err)
			return 1
		}
		fmt.Printf("Wrote %s\n", store.GetFullPath(out))
	}

	if opts.statement {
		data, name, err := services.Document.ExportStatement(ctx, receiptID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Statement export failed: %v\n", err)
			return 1
		}
		out := path.Join(cfg.Receipt.OutputDir, name)
		if err := store.Save(ctx, out, data); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write statement: %v\n", err)
			return 1
		}
		fmt.Printf("Wrote %s\n", store.GetFullPath(out))
	}
	return 0
}
