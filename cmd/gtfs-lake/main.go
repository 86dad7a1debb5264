package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/theoremus-urban-solutions/gtfs-lake/config"
	"github.com/theoremus-urban-solutions/gtfs-lake/convert"
	"github.com/theoremus-urban-solutions/gtfs-lake/curate"
	"github.com/theoremus-urban-solutions/gtfs-lake/ingest"
	"github.com/theoremus-urban-solutions/gtfs-lake/internal"
	"github.com/theoremus-urban-solutions/gtfs-lake/internal/metrics"
	"github.com/theoremus-urban-solutions/gtfs-lake/internal/publisher"
	"github.com/theoremus-urban-solutions/gtfs-lake/lake"
	"github.com/theoremus-urban-solutions/gtfs-lake/static"
	"github.com/theoremus-urban-solutions/gtfs-lake/upload"
)

func loadConfig(cmd *cli.Command) (config.AppConfig, error) {
	cfg, err := config.LoadAppConfig(cmd.String("config"))
	if err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// selectFeeds narrows the run to one feed when --feed is given.
func selectFeeds(cfg config.AppConfig, name string) []config.Feed {
	if name == "" {
		return cfg.Feeds
	}
	return []config.Feed{config.SelectFeed(cfg, name)}
}

func runIngest(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pollInterval := time.Duration(cfg.GTFSRT.PollIntervalMS) * time.Millisecond
	window := time.Duration(cfg.Lake.ArchiveWindowHours) * time.Hour
	collector := metrics.NewCollector(pollInterval, window)
	if cfg.MetricsAddr != "" {
		srv := collector.Serve(cfg.MetricsAddr)
		defer srv.Close()
	}

	var pub ingest.SnapshotPublisher
	if cfg.NATSURL != "" {
		np, err := publisher.NewNATSPublisher(cfg.NATSURL, collector)
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer np.Close()
		pub = np
	}

	return ingest.RunAll(ctx, &cfg, collector, pub)
}

func runStatic(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	l := lake.New(cfg.Lake.Root)
	for _, feed := range selectFeeds(cfg, cmd.String("feed")) {
		if feed.GTFS.StaticURL == "" {
			log.Printf("[%s] no static url configured, skipping", feed.Name)
			continue
		}
		zipBytes, err := static.Download(ctx, feed.GTFS.StaticURL)
		if err != nil {
			return fmt.Errorf("[%s] downloading static feed: %w", feed.Name, err)
		}
		if err := static.Verify(zipBytes); err != nil {
			return fmt.Errorf("[%s] verifying static feed: %w", feed.Name, err)
		}
		path, err := static.Store(l, feed.Name, time.Now().UTC(), zipBytes)
		if err != nil {
			return fmt.Errorf("[%s] storing static feed: %w", feed.Name, err)
		}
		log.Printf("[%s] stored static snapshot at %s", feed.Name, path)
	}
	return nil
}

func runConvert(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	l := lake.New(cfg.Lake.Root)
	conv := convert.NewConverter(l, convert.Options{
		AgencyFilter: convert.ParseAgencyFilter(cmd.String("agencies")),
		DiscoverOnly: cmd.Bool("discover"),
	})

	if archive := cmd.String("archive"); archive != "" {
		if err := conv.ConvertArchive(archive); err != nil {
			return err
		}
		fmt.Println(conv.Summary().String())
		return nil
	}
	summary, err := conv.ConvertDir(l.RawTarDir())
	if err != nil {
		return err
	}
	fmt.Println(summary.String())
	return nil
}

func runCurate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	l := lake.New(cfg.Lake.Root)
	dateStr := cmd.String("date")
	if dateStr == "" {
		dateStr = time.Now().UTC().Format("20060102")
	}

	for _, feed := range selectFeeds(cfg, cmd.String("feed")) {
		zipPath, err := static.LatestSnapshot(l, feed.Name)
		if err != nil {
			return fmt.Errorf("[%s] locating static snapshot: %w", feed.Name, err)
		}
		idx, err := static.NewIndexFromZip(zipPath, static.IndexOptions{
			ServiceDayPattern: cfg.Curate.ServiceDayPattern,
			RoutePattern:      cfg.Curate.RoutePattern,
		})
		if err != nil {
			return fmt.Errorf("[%s] indexing static snapshot: %w", feed.Name, err)
		}

		cur := curate.NewCurator(l, idx, curate.Options{
			RouteNumberPattern: cfg.Curate.RouteNumberPattern,
			SeqJumpMax:         int32(cfg.Curate.TripSequenceJumpMax),
			MaxStopDistanceM:   cfg.Curate.MaxStopDistanceM,
		})
		if err := cur.CurateDate(feed.Name, dateStr); err != nil {
			return fmt.Errorf("[%s] curating %s: %w", feed.Name, dateStr, err)
		}
		if err := cur.WriteHeadways(feed.Name); err != nil {
			log.Printf("[%s] headways: %v", feed.Name, err)
		}
	}
	return nil
}

func runUpload(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	l := lake.New(cfg.Lake.Root)
	dir := cmd.String("dir")
	if dir == "" {
		if len(cfg.Feeds) == 0 {
			return fmt.Errorf("no feeds configured and no --dir given")
		}
		dir = l.SilverDir(cfg.Feeds[0].Name)
	}
	object := cmd.String("object")
	if object == "" {
		object = filepath.Join(cfg.Upload.Prefix, "latest.parquet")
	}

	store, err := upload.NewGCSStorage(ctx, cfg.Upload.Bucket)
	if err != nil {
		return err
	}
	defer store.Close()

	up := upload.NewUploader(store, time.Duration(cfg.Upload.TimeoutMS)*time.Millisecond)
	if cmd.Bool("all") {
		_, err := up.UploadTree(ctx, dir, cfg.Upload.Prefix)
		return err
	}
	return up.UploadLatest(ctx, dir, object)
}

func main() {
	internal.InitLogging()

	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config file",
		Value:   "config.yaml",
		Sources: cli.EnvVars("GTFS_LAKE_CONFIG"),
	}

	cmd := &cli.Command{
		Name:  "gtfs-lake",
		Usage: "Ingest GTFS-RT feeds into a raw/bronze/silver data lake",
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Poll GTFS-RT endpoints and spool raw snapshots",
				Action: runIngest,
				Flags:  []cli.Flag{configFlag},
			},
			{
				Name:   "static",
				Usage:  "Download and store GTFS static snapshots",
				Action: runStatic,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{Name: "feed", Usage: "Restrict the run to one configured feed"},
				},
			},
			{
				Name:   "convert",
				Usage:  "Convert raw archives into bronze Parquet partitions",
				Action: runConvert,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{Name: "archive", Usage: "Convert a single archive instead of the whole tar dir"},
					&cli.StringFlag{Name: "agencies", Usage: "Comma-separated agency filter"},
					&cli.BoolFlag{Name: "discover", Usage: "Scan archives and report contents without writing"},
				},
			},
			{
				Name:   "curate",
				Usage:  "Build silver tables from bronze partitions",
				Action: runCurate,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{Name: "date", Usage: "Feed-local date to curate (YYYYMMDD, default today)"},
					&cli.StringFlag{Name: "feed", Usage: "Restrict the run to one configured feed"},
				},
			},
			{
				Name:   "upload",
				Usage:  "Upload the first curated Parquet file to GCS",
				Action: runUpload,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{Name: "dir", Usage: "Directory to scan for Parquet files"},
					&cli.StringFlag{Name: "object", Usage: "Destination object name"},
					&cli.BoolFlag{Name: "all", Usage: "Upload every Parquet file, mirroring the directory layout"},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
