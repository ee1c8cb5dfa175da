package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "feeflow/config"
	"feeflow/logger"
	"feeflow/models"
)

// SnapshotFetcher pulls the accounting ledger's daily volume file from S3 and
// replaces the store contents with it. One fetch runs at startup, then one
// after each UTC midnight when a fresh file is published. Failed fetches are
// retried on the configured delay.
type SnapshotFetcher struct {
	config   *appconfig.Config
	store    *Store
	s3Client *s3.Client
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log
}

func NewSnapshotFetcher(cfg *appconfig.Config, store *Store) (*SnapshotFetcher, error) {
	log := logger.GetLogger()

	ctx := context.Background()

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Storage.S3.Region),
	}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.WithComponent("snapshot_fetcher").WithError(err).Warn("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := awsConfig.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Storage.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
		}
		o.UsePathStyle = cfg.Storage.S3.PathStyle
	})

	f := &SnapshotFetcher{
		config:   cfg,
		store:    store,
		s3Client: s3Client,
		wg:       &sync.WaitGroup{},
		log:      log,
	}

	log.WithComponent("snapshot_fetcher").WithFields(logger.Fields{
		"bucket":     cfg.Storage.S3.Bucket,
		"region":     cfg.Storage.S3.Region,
		"key_prefix": cfg.Ledger.Snapshot.KeyPrefix,
	}).Info("snapshot fetcher initialized")

	return f, nil
}

func (f *SnapshotFetcher) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return fmt.Errorf("snapshot fetcher already running")
	}
	f.running = true
	f.ctx = ctx
	f.mu.Unlock()

	log := f.log.WithComponent("snapshot_fetcher").WithFields(logger.Fields{"operation": "start"})
	if !f.config.Ledger.Snapshot.Enabled {
		log.Warn("volume snapshots are disabled")
		return fmt.Errorf("volume snapshots are disabled")
	}

	f.wg.Add(1)
	go f.run()
	log.Info("snapshot fetcher started successfully")
	return nil
}

func (f *SnapshotFetcher) Stop() {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
	f.log.WithComponent("snapshot_fetcher").Info("stopping snapshot fetcher")
	f.wg.Wait()
	f.log.WithComponent("snapshot_fetcher").Info("snapshot fetcher stopped")
}

func (f *SnapshotFetcher) run() {
	defer f.wg.Done()
	log := f.log.WithComponent("snapshot_fetcher").WithFields(logger.Fields{"worker": "fetch"})

	retryDelay := f.config.Ledger.Snapshot.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 10 * time.Minute
	}

	for {
		if err := f.fetch(f.ctx); err != nil {
			if f.ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("volume snapshot fetch failed, retrying")
			select {
			case <-time.After(retryDelay):
				continue
			case <-f.ctx.Done():
				return
			}
		}

		wait := untilNextMidnightUTC(time.Now())
		log.WithFields(logger.Fields{"next_fetch_in": wait.String()}).Info("volume snapshot applied, sleeping until next publish")
		select {
		case <-time.After(wait):
		case <-f.ctx.Done():
			return
		}
	}
}

// fetch downloads and applies the snapshot object for the current UTC day.
func (f *SnapshotFetcher) fetch(ctx context.Context) error {
	key := f.snapshotKey(time.Now().UTC())
	log := f.log.WithComponent("snapshot_fetcher").WithFields(logger.Fields{"s3_key": key})
	log.Info("fetching volume snapshot")

	out, err := f.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.config.Storage.S3.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to fetch snapshot %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}

	snapshot, err := parseSnapshot(data)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", key, err)
	}

	applied := f.store.ReplaceAll(snapshot)
	log.WithFields(logger.Fields{"accounts": applied}).Info("volume snapshot fetched")
	return nil
}

func (f *SnapshotFetcher) snapshotKey(now time.Time) string {
	timeFormat := f.config.Ledger.Snapshot.TimeFormat
	if timeFormat == "" {
		timeFormat = "2006-01-02"
	}
	prefix := strings.TrimSuffix(f.config.Ledger.Snapshot.KeyPrefix, "/")
	return fmt.Sprintf("%s/date=%s.json", prefix, now.Format(timeFormat))
}

func parseSnapshot(data []byte) (models.VolumeSnapshot, error) {
	var snapshot models.VolumeSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return models.VolumeSnapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snapshot, nil
}

func untilNextMidnightUTC(now time.Time) time.Duration {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	return next.Sub(now)
}
