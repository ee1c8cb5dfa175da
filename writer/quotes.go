package writer

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	appconfig "feeflow/config"
	"feeflow/internal/metrics"
	"feeflow/logger"
	"feeflow/models"
)

// ParquetQuote is the audit trail row layout.
type ParquetQuote struct {
	QuoteID      string  `parquet:"name=quote_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Account      string  `parquet:"name=account, type=BYTE_ARRAY, convertedtype=UTF8"`
	Venue        string  `parquet:"name=venue, type=BYTE_ARRAY, convertedtype=UTF8"`
	Side         string  `parquet:"name=side, type=BYTE_ARRAY, convertedtype=UTF8"`
	Asset        string  `parquet:"name=asset, type=BYTE_ARRAY, convertedtype=UTF8"`
	RateBps      float64 `parquet:"name=rate_bps, type=DOUBLE"`
	SurchargeBps float64 `parquet:"name=surcharge_bps, type=DOUBLE"`
	Tier         string  `parquet:"name=tier, type=BYTE_ARRAY, convertedtype=UTF8"`
	TierRank     int32   `parquet:"name=tier_rank, type=INT32"`
	Fee          float64 `parquet:"name=fee, type=DOUBLE"`
	Timestamp    int64   `parquet:"name=timestamp, type=INT64"`
}

// memoryFileWriter implements the ParquetFile interface for in-memory writing.
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{
		buffer: &bytes.Buffer{},
	}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error) {
	return mfw.buffer.Read(b)
}

func (mfw *memoryFileWriter) Write(b []byte) (int, error) {
	return mfw.buffer.Write(b)
}

func (mfw *memoryFileWriter) Close() error {
	return nil
}

func (mfw *memoryFileWriter) Bytes() []byte {
	return mfw.buffer.Bytes()
}

// QuoteWriter drains the audit channel, buffers records per venue and
// persists them as parquet files on S3.
type QuoteWriter struct {
	config      *appconfig.Config
	auditCh     <-chan models.QuoteRecord
	s3Client    *s3.Client
	ctx         context.Context
	wg          *sync.WaitGroup
	mu          sync.RWMutex
	running     bool
	log         *logger.Log
	buffer      map[string][]models.QuoteRecord
	flushTicker *time.Ticker

	batchesFlushed int64
	recordsWritten int64
	bytesWritten   int64
	errorsCount    int64
}

func NewQuoteWriter(cfg *appconfig.Config, auditCh <-chan models.QuoteRecord) (*QuoteWriter, error) {
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
		log.WithComponent("audit_writer").WithError(err).Warn("failed to load AWS configuration")
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

	w := &QuoteWriter{
		config:   cfg,
		auditCh:  auditCh,
		s3Client: s3Client,
		wg:       &sync.WaitGroup{},
		log:      log,
	}

	log.WithComponent("audit_writer").WithFields(logger.Fields{
		"bucket":     cfg.Storage.S3.Bucket,
		"region":     cfg.Storage.S3.Region,
		"key_prefix": cfg.Audit.KeyPrefix,
	}).Info("audit writer initialized")

	return w, nil
}

func (w *QuoteWriter) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("audit writer already running")
	}
	w.running = true
	w.ctx = ctx
	w.mu.Unlock()

	log := w.log.WithComponent("audit_writer").WithFields(logger.Fields{"operation": "start"})
	log.Info("starting audit writer")

	w.buffer = make(map[string][]models.QuoteRecord)

	flushInterval := w.config.Audit.FlushInterval
	if flushInterval <= 0 {
		flushInterval = time.Minute
	}
	w.flushTicker = time.NewTicker(flushInterval)

	numWorkers := w.config.Audit.MaxWorkers
	if numWorkers < 1 {
		numWorkers = 1
	}

	log.WithFields(logger.Fields{"workers": numWorkers}).Info("starting audit writer workers")

	for i := 0; i < numWorkers; i++ {
		w.wg.Add(1)
		go w.worker(i)
	}

	w.wg.Add(1)
	go w.flushWorker()

	log.Info("audit writer started successfully")
	return nil
}

func (w *QuoteWriter) Stop() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	w.log.WithComponent("audit_writer").Info("stopping audit writer")
	w.wg.Wait()
	w.log.WithComponent("audit_writer").Info("audit writer stopped")
}

func (w *QuoteWriter) worker(workerID int) {
	defer w.wg.Done()

	log := w.log.WithComponent("audit_writer").WithFields(logger.Fields{
		"worker_id": workerID,
		"worker":    "audit_writer",
	})

	log.Info("starting audit writer worker")

	batchSize := w.config.Audit.BatchSize
	if batchSize < 1 {
		batchSize = 500
	}

	for {
		select {
		case <-w.ctx.Done():
			log.Info("worker stopped due to context cancellation")
			return
		case record, ok := <-w.auditCh:
			if !ok {
				log.Info("audit channel closed, worker stopping")
				return
			}
			if w.addRecord(record) >= batchSize {
				w.flushVenue(record.Venue, "batch_size")
			}
		}
	}
}

// addRecord buffers one record and reports the venue's buffered count.
func (w *QuoteWriter) addRecord(record models.QuoteRecord) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffer[record.Venue] = append(w.buffer[record.Venue], record)
	return len(w.buffer[record.Venue])
}

func (w *QuoteWriter) flushWorker() {
	defer w.wg.Done()

	log := w.log.WithComponent("audit_writer").WithFields(logger.Fields{"worker": "flush"})
	log.Info("starting flush worker")

	for {
		select {
		case <-w.ctx.Done():
			w.flushBuffers("shutdown")
			log.Info("flush worker stopped due to context cancellation")
			return
		case <-w.flushTicker.C:
			w.flushBuffers("interval")
		}
	}
}

func (w *QuoteWriter) flushBuffers(reason string) {
	w.mu.Lock()
	buffers := w.buffer
	w.buffer = make(map[string][]models.QuoteRecord)
	w.mu.Unlock()

	if len(buffers) == 0 {
		return
	}

	w.log.WithComponent("audit_writer").WithFields(logger.Fields{
		"flushed_buffers": len(buffers),
		"reason":          reason,
	}).Info("flushing audit buffers")

	for venue, records := range buffers {
		w.processBatch(venue, records)
	}
}

func (w *QuoteWriter) flushVenue(venue, reason string) {
	w.mu.Lock()
	records := w.buffer[venue]
	delete(w.buffer, venue)
	w.mu.Unlock()

	if len(records) == 0 {
		return
	}

	w.log.WithComponent("audit_writer").WithFields(logger.Fields{
		"venue":  venue,
		"reason": reason,
	}).Info("flushing audit buffer")

	w.processBatch(venue, records)
}

func (w *QuoteWriter) processBatch(venue string, records []models.QuoteRecord) {
	log := w.log.WithComponent("audit_writer").WithFields(logger.Fields{
		"venue":        venue,
		"record_count": len(records),
		"operation":    "process_batch",
	})

	if len(records) == 0 {
		log.Debug("batch has no records, skipping")
		return
	}

	s3Key := w.generateS3Key(venue, records[0].Timestamp)
	log = log.WithFields(logger.Fields{"s3_key": s3Key})

	parquetData, fileSize, err := w.createParquetFile(records)
	if err != nil {
		atomic.AddInt64(&w.errorsCount, 1)
		log.WithError(err).Error("failed to create parquet file")
		return
	}

	if err := w.uploadToS3(s3Key, parquetData); err != nil {
		atomic.AddInt64(&w.errorsCount, 1)
		log.WithError(err).
			WithFields(logger.Fields{"bucket": w.config.Storage.S3.Bucket, "s3_key": s3Key}).
			Error("failed to upload to S3")
		return
	}

	atomic.AddInt64(&w.batchesFlushed, 1)
	atomic.AddInt64(&w.recordsWritten, int64(len(records)))
	atomic.AddInt64(&w.bytesWritten, fileSize)
	logger.IncrementAuditWrite(fileSize)

	log.WithFields(logger.Fields{
		"file_size": fileSize,
	}).Info("audit batch uploaded successfully")
}

func (w *QuoteWriter) generateS3Key(venue string, ts time.Time) string {
	prefix := strings.TrimSuffix(w.config.Audit.KeyPrefix, "/")
	if prefix == "" {
		prefix = "quotes"
	}

	key := filepath.Join(
		prefix,
		fmt.Sprintf("date=%s", ts.UTC().Format("2006-01-02")),
		fmt.Sprintf("venue=%s", venue),
		fmt.Sprintf("%s.parquet", uuid.New().String()),
	)
	return filepath.ToSlash(key)
}

func (w *QuoteWriter) createParquetFile(records []models.QuoteRecord) ([]byte, int64, error) {
	log := w.log.WithComponent("audit_writer").WithFields(logger.Fields{
		"records_count": len(records),
		"operation":     "create_parquet_file",
	})
	log.Debug("creating parquet file")

	fw := newMemoryFileWriter()

	pw, err := writer.NewParquetWriter(fw, new(ParquetQuote), 4)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, record := range records {
		row := toParquetQuote(record)
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			return nil, 0, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, 0, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}

	data := fw.Bytes()
	return data, int64(len(data)), nil
}

func toParquetQuote(record models.QuoteRecord) ParquetQuote {
	return ParquetQuote{
		QuoteID:      record.QuoteID,
		Account:      record.Account,
		Venue:        record.Venue,
		Side:         record.Side,
		Asset:        record.Asset,
		RateBps:      record.RateBps.InexactFloat64(),
		SurchargeBps: record.SurchargeBps.InexactFloat64(),
		Tier:         record.Tier,
		TierRank:     int32(record.TierRank),
		Fee:          record.Fee.InexactFloat64(),
		Timestamp:    record.Timestamp.UnixMilli(),
	}
}

func (w *QuoteWriter) uploadToS3(key string, data []byte) error {
	log := w.log.WithComponent("audit_writer").WithFields(logger.Fields{
		"operation": "upload_to_s3",
		"data_size": len(data),
	})
	log.Debug("uploading to S3")

	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.config.Storage.S3.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":    "parquet",
			"compression":     "snappy",
			"feeflow-version": w.config.Feeflow.Version,
		},
	}

	ctx := context.WithoutCancel(w.ctx)
	_, err := w.s3Client.PutObject(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to upload to S3 bucket %s: %w", w.config.Storage.S3.Bucket, err)
	}

	log.Debug("successfully uploaded to S3")
	return nil
}

// Stats reports flush counters for the periodic report. Each flushed batch
// produces exactly one parquet object, so batches and files count together.
func (w *QuoteWriter) Stats() metrics.WriterStats {
	return metrics.WriterStats{
		BatchesWritten: atomic.LoadInt64(&w.batchesFlushed),
		FilesWritten:   atomic.LoadInt64(&w.batchesFlushed),
		BytesWritten:   atomic.LoadInt64(&w.bytesWritten),
		ErrorsCount:    atomic.LoadInt64(&w.errorsCount),
		ChannelLen:     len(w.auditCh),
		ChannelCap:     cap(w.auditCh),
	}
}
