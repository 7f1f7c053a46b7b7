// Package main runs a single discovery for one wallet and prints the 3D assets found.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nft3d-scanner/internal/adapter"
	"github.com/nft3d-scanner/internal/cache"
	"github.com/nft3d-scanner/internal/config"
	"github.com/nft3d-scanner/internal/logging"
	"github.com/nft3d-scanner/internal/resolver"
	"github.com/nft3d-scanner/internal/service"
	"github.com/nft3d-scanner/internal/types"
)

func main() {
	var (
		chain   = flag.Int64("chain", int64(types.ChainEthereum), "Chain ID to scan")
		query   = flag.String("q", "", "Optional collection or name filter")
		timeout = flag.Duration("timeout", 5*time.Minute, "Overall timeout")
		resolve = flag.Bool("resolve", false, "Resolve the first model URL of every asset through the gateways")
		verbose = flag.Bool("v", false, "Log at debug level")
	)
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: discover [-chain 1] [-q filter] [-resolve] [-v] <address>")
		os.Exit(2)
	}
	address := flag.Arg(0)

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Upstream.APIKey == "" {
		fmt.Println("Error: ALCHEMY_API_KEY not set")
		os.Exit(1)
	}

	network, ok := types.LookupNetwork(types.ChainID(*chain))
	if !ok {
		fmt.Printf("Error: unsupported chain %d\n", *chain)
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.FormatText)
	if *verbose {
		logger.SetLevel(logging.LevelDebug)
	}

	client, err := adapter.NewAlchemyClient(adapter.AlchemyConfig{
		APIKey:          cfg.Upstream.APIKey,
		BaseURLTemplate: cfg.Upstream.BaseURLTemplate,
		PageSize:        cfg.Upstream.PageSize,
		MaxRetries:      cfg.Upstream.MaxRetries,
		TokenURITimeout: cfg.Upstream.TokenURITimeout,
		RequestTimeout:  cfg.Upstream.RequestTimeout,
		BaseDelay:       cfg.Upstream.BaseDelay,
		MaxDelay:        cfg.Upstream.MaxDelay,
		Logger:          logger,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	// No durable tier for a one-shot run
	memOnly := cache.New(nil, cache.Config{Logger: logger})
	discovery := service.NewDiscoveryService(client, memOnly, service.DiscoveryConfig{
		MaxPages:  cfg.Upstream.MaxPages,
		PageDelay: cfg.Upstream.PageDelay,
		Logger:    logger,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fmt.Printf("Scanning %s on %s for 3D assets...\n\n", address, network.Name)

	start := time.Now()
	assets, err := discovery.Discover(ctx, address, network, *query)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	var gateways *resolver.Resolver
	if *resolve {
		gateways = resolver.New(cfg.Gateways.URLs, resolver.WithProbeTimeout(cfg.Gateways.ProbeTimeout))
	}

	byFormat := make(map[types.ModelFormat]int)
	for _, asset := range assets {
		byFormat[asset.Format]++

		fmt.Printf("%s #%s  %s\n", common.HexToAddress(asset.ContractAddress).Hex(), asset.TokenID, asset.Name)
		fmt.Printf("  format: %s  storage: %s  candidates: %d\n", asset.Format, asset.Storage.Kind, len(asset.ModelURLs))
		if len(asset.ModelURLs) > 0 {
			model := asset.ModelURLs[0].URL
			if gateways != nil {
				model = gateways.Resolve(ctx, model)
			}
			fmt.Printf("  model: %s\n", model)
		}
	}

	formats := make([]string, 0, len(byFormat))
	for f := range byFormat {
		formats = append(formats, string(f))
	}
	sort.Strings(formats)

	fmt.Println("\n=== Summary ===")
	fmt.Printf("Assets with 3D models: %d\n", len(assets))
	for _, f := range formats {
		fmt.Printf("  %-5s %d\n", f, byFormat[types.ModelFormat(f)])
	}
	fmt.Printf("Elapsed: %s\n", time.Since(start).Round(time.Millisecond))
}
