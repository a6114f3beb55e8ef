package main

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	config_aws "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/opensearch-project/opensearch-go/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"catalog-sync-worker/config"
	"catalog-sync-worker/domain"
	"catalog-sync-worker/repositories"
	"catalog-sync-worker/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	catalogs, err := config.LoadCatalogs(cfg.CatalogsFile)
	if err != nil {
		log.Fatalf("failed to load catalogs: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful Shutdown handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, finishing current work and saving progress...", sig)
		cancel()
	}()

	httpRepo := repositories.NewHTTPRepository(cfg.AssetTimeout, cfg.UserAgent)

	opts := []services.SyncOption{
		services.WithAssetRoot(filepath.Join(cfg.DataDir, "images")),
		services.WithPagination(cfg.PageCap, services.NewRetryPolicy(cfg.RetryCount, cfg.PageRetryDelay)),
		services.WithSettleDelay(cfg.SettleDelay),
	}

	// Page source and record extractor share one session
	switch cfg.PageSource {
	case config.PageSourceBrowser:
		browser := repositories.NewBrowserSession(repositories.BrowserConfig{RemoteURL: cfg.BrowserURL})
		defer browser.Close()
		opts = append(opts,
			services.WithPageSource(browser),
			services.WithExtractor(repositories.NewHTMLRecordExtractor(browser)),
		)
	default:
		opts = append(opts,
			services.WithPageSource(repositories.NewHTTPPageSource(httpRepo)),
			services.WithExtractor(repositories.NewHTMLRecordExtractor(httpRepo)),
		)
	}

	// Snapshot store
	switch cfg.SnapshotBackend {
	case config.BackendPostgres:
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to connect database: %v", err)
		}
		store := repositories.NewPostgresSnapshotStore(db, cfg.DBBatchSize)
		if err := store.Migrate(ctx); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		opts = append(opts, services.WithSnapshotStore(store))
	default:
		opts = append(opts, services.WithSnapshotStore(repositories.NewCSVSnapshotStore(cfg.DataDir, repositories.RecordFields)))
	}

	if cfg.SeenMirrorEnabled {
		redisClient := repositories.NewRedisClient(cfg.RedisHost, cfg.RedisPort)
		defer redisClient.Close()
		opts = append(opts, services.WithSeenMirror(repositories.NewRedisSeenMirror(redisClient, repositories.DefaultSeenTTL)))
	}

	assetOpts := []services.AssetFetcherOption{
		services.WithAssetWorkers(cfg.AssetWorkers),
		services.WithAssetRetry(services.NewRetryPolicy(cfg.RetryCount, cfg.AssetRetryDelay)),
	}

	if cfg.NeedsAWS() {
		awsCfg, err := config_aws.LoadDefaultConfig(ctx, config_aws.WithRegion(cfg.AWSRegion))
		if err != nil {
			log.Fatalf("unable to load SDK config, %v", err)
		}
		opts = append(opts, awsOptions(cfg, awsCfg, &assetOpts)...)
	}

	opts = append(opts, services.WithAssetFetcher(services.NewAssetFetcher(httpRepo, assetOpts...)))

	if cfg.OpenSearchURL != "" {
		osClient, err := opensearch.NewClient(opensearch.Config{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
			Addresses: []string{cfg.OpenSearchURL},
		})
		if err != nil {
			log.Fatalf("error creating OpenSearch client: %s", err)
		}
		opts = append(opts, services.WithListingIndexer(repositories.NewOpenSearchRepository(osClient, cfg.OpenSearchIndex)))
	}

	engine := services.NewSyncEngine(opts...)

	log.Printf("Catalog sync worker started (%d catalogs, source: %s, backend: %s)", len(catalogs), cfg.PageSource, cfg.SnapshotBackend)
	start := time.Now()

	results, err := engine.RunAll(ctx, catalogs)
	for _, stats := range results {
		logRun(stats)
	}
	if err != nil {
		log.Fatalf("catalog sync aborted: %v", err)
	}
	log.Printf("Catalog sync finished in %s", time.Since(start).Round(time.Second))
}

func awsOptions(cfg *config.Config, awsCfg aws.Config, assetOpts *[]services.AssetFetcherOption) []services.SyncOption {
	var opts []services.SyncOption
	if cfg.AssetsBucket != "" {
		s3Repo := repositories.NewS3Repository(repositories.NewS3Client(awsCfg), cfg.AssetsBucket)
		*assetOpts = append(*assetOpts, services.WithAssetMirror(s3Repo))
	}
	if cfg.NotifyQueueURL != "" {
		sqsClient := repositories.NewSQSClient(sqs.NewFromConfig(awsCfg))
		opts = append(opts, services.WithNotifier(sqsClient, cfg.NotifyQueueURL))
	}
	if cfg.DynamoDBTable != "" {
		dynamoClient := repositories.NewDynamoDBClient(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable)
		opts = append(opts, services.WithRunStatusRepository(dynamoClient))
	}
	return opts
}

func logRun(stats domain.RunStats) {
	log.Printf("[%s] pages=%d links=%d extracted=%d known=%d failures=%d assets=%d/%d new=%d refreshed=%d delisted=%d stop=%s saved=%t (%s)",
		stats.Catalog, stats.PagesSucceeded, stats.LinksSeen, stats.RecordsExtracted, stats.RecordsKnown,
		stats.ExtractionFailures, stats.AssetsOK, stats.AssetsOK+stats.AssetsFailed,
		stats.NewRecords, stats.RefreshedRecords, stats.DelistedRecords, stats.StopReason,
		stats.SnapshotSaved, stats.Duration.Round(time.Millisecond))
}
