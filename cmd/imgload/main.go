package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"image-resource-cache/internal/binding"
	"image-resource-cache/internal/config"
	"image-resource-cache/internal/logging"
	"image-resource-cache/internal/manifest"
	"image-resource-cache/internal/render"
	"image-resource-cache/internal/resource"
	"image-resource-cache/internal/texture"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "imgload [flags] IMAGE...",
	Short: "Load images through the shared resource cache",
	Long: strings.TrimSpace(`
Loads local files and http(s) URLs through the asynchronous resource cache,
drives a headless frame loop until every image is loaded, and optionally
resizes, crops and saves the results.
    `),
	Args: cobra.MinimumNArgs(1),
	RunE: run,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringP("config", "c", "", "Path to config.yaml")
	rootCmd.Flags().StringP("data", "d", "", "Base directory for relative image paths (default: cwd)")
	rootCmd.Flags().StringP("output", "o", "", "Output directory for saved images")
	rootCmd.Flags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().Int("fps", 0, "Frame rate of the frame loop (default: 60)")
	rootCmd.Flags().Duration("timeout", 0, "Give up after this long (default: 1m)")
	rootCmd.Flags().Bool("monitor", false, "Log cache and queue counts when they change")
	rootCmd.Flags().String("resize", "", "Resize every image to WxH")
	rootCmd.Flags().String("crop", "", "Crop every image to X,Y,W,H")
	rootCmd.Flags().String("save-ext", "", "Save every image with this extension (e.g. .webp)")
	rootCmd.Flags().StringSlice("reserve", nil, "Images to preload without displaying")
	rootCmd.Flags().String("manifest", "", "Write a JSON report to this path")
}

func run(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	configFile, _ := flags.GetString("config")

	var cfg config.Config
	if configFile != "" {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}
	}

	dataDir, _ := flags.GetString("data")
	outputDir, _ := flags.GetString("output")
	logLevel, _ := flags.GetString("log-level")
	fps, _ := flags.GetInt("fps")
	timeout, _ := flags.GetDuration("timeout")
	monitor, _ := flags.GetBool("monitor")
	if m, _ := flags.GetString("manifest"); m != "" {
		cfg.Manifest = m
	}

	// CLI flags override config file
	cfg.Resolve(config.Flags{
		DataDir:   dataDir,
		OutputDir: outputDir,
		LogLevel:  logLevel,
		FPS:       fps,
		Timeout:   timeout,
		Monitor:   monitor,
	})

	resize, err := parseInts(flags, "resize", "x", 2)
	if err != nil {
		return err
	}
	crop, err := parseInts(flags, "crop", ",", 4)
	if err != nil {
		return err
	}
	saveExt, _ := flags.GetString("save-ext")
	if saveExt != "" {
		if !strings.HasPrefix(saveExt, ".") {
			saveExt = "." + saveExt
		}
		if !texture.Supported(saveExt) {
			return fmt.Errorf("unsupported save extension %q", saveExt)
		}
	}
	reserve, _ := flags.GetStringSlice("reserve")

	log := logging.New(logging.Config{
		LogLevel:  cfg.Logging.Level,
		LogFormat: cfg.Logging.Format,
		Pretty:    true,
	})

	cache := resource.NewCache(
		resource.WithLogger(logging.Component(log, "cache")),
		resource.WithRemoteSource(resource.NewHTTPSource(cfg.Remote.Timeout, cfg.Remote.UserAgent, cfg.Remote.MaxBytes)),
	)
	cache.Start()
	defer cache.Close()

	loop := render.NewLoop(cache, render.NewMemoryUploader(), cfg.Frame.FPS, logging.Component(log, "render"))

	saved := make(map[string]string)
	for i, name := range args {
		var b *binding.Binding
		b = binding.New(cache,
			binding.WithBaseDir(cfg.BaseDir),
			binding.WithLogger(logging.Component(log, "binding")),
			binding.WithNotify(func(e binding.Event) {
				switch e.Kind {
				case binding.EventSaved:
					saved[b.ID().String()] = e.Path
				case binding.EventSize:
					log.WithFields(logrus.Fields{"image": name, "width": e.Width, "height": e.Height}).Debug("Size changed")
				case binding.EventMonitor:
					log.WithFields(logrus.Fields{
						"resources": e.Stats.Resources,
						"local":     e.Stats.LocalDepth,
						"remote":    e.Stats.RemoteDepth,
					}).Info("Monitor")
				}
			}),
		)
		defer b.Close()

		b.Set(name)
		if resize != nil {
			b.Resize(resize[0], resize[1])
		}
		if crop != nil {
			b.Crop(crop[0], crop[1], crop[2], crop[3])
		}
		if saveExt != "" {
			b.Save(outputPath(cfg.OutputDir, name, i, saveExt))
		}
		if i == 0 {
			b.SetMonitor(cfg.Frame.Monitor)
			for _, r := range reserve {
				b.Reserve(r)
			}
		}
		loop.Add(b)
	}

	fmt.Printf("Images: %d, Reserved: %d, FPS: %d\n", len(args), len(reserve), cfg.Frame.FPS)
	fmt.Println("------------------------------------------------------------")

	start := time.Now()
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Frame.Timeout)
	defer cancel()

	runErr := loop.Run(ctx, func() bool {
		for _, b := range loop.Bindings() {
			if !b.Ready() {
				return false
			}
		}
		return true
	})

	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Done in %.1fs (%d frames)\n", time.Since(start).Seconds(), loop.Frames())

	entries := manifest.FromBindings(loop.Bindings(), saved)
	loaded, empty := 0, 0
	for _, e := range entries {
		if e.State == resource.Loaded.String() {
			loaded++
		}
		if e.Empty {
			empty++
			fmt.Printf("  empty: %s\n", e.Key)
		}
	}
	fmt.Printf("Loaded: %d/%d, empty: %d, saved: %d\n", loaded, len(args), empty, len(saved))

	if cfg.Manifest != "" {
		if err := manifest.Write(cfg.Manifest, entries); err != nil {
			log.WithError(err).Warn("Manifest write failed")
		} else {
			fmt.Printf("Manifest: %s\n", cfg.Manifest)
		}
	}

	if runErr != nil {
		return fmt.Errorf("frame loop: %w", runErr)
	}
	if empty > 0 {
		return fmt.Errorf("%d image(s) could not be loaded", empty)
	}
	return nil
}

// parseInts splits a flag value like "50x50" or "0,0,10,10".
func parseInts(flags interface{ GetString(string) (string, error) }, name, sep string, n int) ([]int, error) {
	v, _ := flags.GetString(name)
	if v == "" {
		return nil, nil
	}
	parts := strings.Split(v, sep)
	if len(parts) != n {
		return nil, fmt.Errorf("--%s: want %d values separated by %q, got %q", name, n, sep, v)
	}
	out := make([]int, n)
	for i, p := range parts {
		x, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", name, err)
		}
		out[i] = x
	}
	return out, nil
}

// outputPath names the saved copy of image i after its base name.
func outputPath(dir, name string, i int, ext string) string {
	base := filepath.Base(name)
	if u := strings.IndexAny(base, "?#"); u >= 0 {
		base = base[:u]
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = "image"
	}
	return filepath.Join(dir, fmt.Sprintf("%03d-%s%s", i, base, ext))
}
