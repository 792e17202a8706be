package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/jondjones-poc/cex-scan-app-sub000/internal/browser"
	"github.com/jondjones-poc/cex-scan-app-sub000/internal/config"
	"github.com/jondjones-poc/cex-scan-app-sub000/internal/fetch"
	"github.com/jondjones-poc/cex-scan-app-sub000/internal/listing"
	"github.com/jondjones-poc/cex-scan-app-sub000/internal/logging"
	"github.com/jondjones-poc/cex-scan-app-sub000/internal/models"
	"github.com/jondjones-poc/cex-scan-app-sub000/internal/notify"
	"github.com/jondjones-poc/cex-scan-app-sub000/internal/resolver"
	"github.com/jondjones-poc/cex-scan-app-sub000/internal/stockapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := fetch.NewClient(fetch.Options{
		Timeout:         cfg.FetchTimeout,
		UserAgent:       cfg.UserAgent,
		Referer:         cfg.Referer,
		ErrorPageMarker: cfg.ErrorPageMarker,
	}, log.Named("fetch"))

	api := stockapi.NewClient(client, cfg.APIDetailTemplates, log.Named("stockapi"))

	var renderer *browser.Renderer
	renderer, err = browser.New(ctx, browser.Options{
		Headless:  cfg.Headless,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.RenderTimeout,
	}, log.Named("browser"))
	if err != nil {
		log.Warn("browser unavailable, falling back to static fetches", zap.Error(err))
		renderer = nil
	} else {
		defer renderer.Close()
	}

	// A typed nil pointer must not leak into the interfaces downstream.
	var resRenderer resolver.Renderer
	var listRenderer listing.Renderer
	if renderer != nil {
		resRenderer = renderer
		listRenderer = renderer
	}

	fmt.Println("Starting stock scan...")

	if len(cfg.WatchedSKUs) > 0 {
		res := resolver.New(cfg, api, client, resRenderer, log.Named("resolver"))
		records := res.ResolveAll(ctx, cfg.WatchedSKUs)

		fmt.Printf("\nWatched items (%d):\n", len(records))
		for i, rec := range records {
			printRecord(i+1, rec)
		}

		dispatcher := notify.NewDispatcher(cfg.WebhookURL, client, log.Named("notify"))
		dispatcher.DispatchInStock(ctx, records)
	}

	scraper := listing.NewScraper(cfg, listRenderer, log.Named("listing"))

	classes := make([]string, 0, len(cfg.Categories))
	for class := range cfg.Categories {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	for _, class := range classes {
		if ctx.Err() != nil {
			break
		}
		fmt.Printf("\nScanning %s...\n", class)

		items := scraper.Scan(ctx, cfg.Categories[class])
		fmt.Printf("Found %d items\n", len(items))
		for i, item := range items {
			printListing(i+1, item)
		}
	}

	fmt.Println("\nDone.")
}

func printRecord(n int, rec models.ItemRecord) {
	status := "OUT OF STOCK"
	if rec.InStock {
		status = "IN STOCK"
	}
	if rec.SourceNote == "Unknown" {
		status = "UNKNOWN"
	}

	name := rec.Name
	if name == "" {
		name = rec.ItemID
	}
	fmt.Printf("%d. %s [%s]\n", n, name, status)
	fmt.Printf("   URL: %s\n", rec.CanonicalURL)
	if rec.Price != "" {
		fmt.Printf("   Price: %s\n", rec.Price)
	}
	if rec.InStock {
		fmt.Printf("   Quantity: %d\n", rec.Quantity)
	}
	if len(rec.Stores) > 0 {
		fmt.Printf("   Stores: %s\n", strings.Join(rec.Stores, ", "))
	}
	if rec.SourceNote != "" {
		fmt.Printf("   Note: %s\n", rec.SourceNote)
	}
}

func printListing(n int, item models.ListingItem) {
	fmt.Printf("%d. %s\n", n, item.RawName)
	if item.URL != "" {
		fmt.Printf("   URL: %s\n", item.URL)
	}
	if item.Price != "" {
		fmt.Printf("   Price: %s\n", item.Price)
	}

	var condition []string
	if item.Flags.IsBoxed {
		condition = append(condition, "boxed")
	}
	if item.Flags.IsUnboxed {
		condition = append(condition, "unboxed")
	}
	if item.Flags.HasManual {
		condition = append(condition, "with manual")
	}
	if item.Flags.HasNoManual {
		condition = append(condition, "no manual")
	}
	if len(condition) > 0 {
		fmt.Printf("   Condition: %s\n", strings.Join(condition, ", "))
	}
}
