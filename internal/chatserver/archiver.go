package chatserver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/robfig/cron/v3"

	"github.com/haldane-labs/confrelay/internal/config"
)

// ArchiveResult records the outcome of one archival run, mirroring what
// an operator would want to see in the logs.
type ArchiveResult struct {
	Status       string
	BytesWritten int64
	Timestamp    time.Time
}

// Archiver periodically snapshots the live session/client listing to a
// compressed, append-only history file and, when configured, uploads
// that file to S3. It never touches live conferencing state beyond a
// brief read under the hub lock.
type Archiver struct {
	cfg    *config.ArchiveConfig
	hub    *Hub
	logger *slog.Logger

	cron    *cron.Cron
	mu      sync.Mutex
	running bool

	LastResult *ArchiveResult

	s3Client *s3.Client
}

// NewArchiver builds an Archiver and registers its cron schedule. It does
// not start running until Start is called.
func NewArchiver(cfg *config.ServerConfig, hub *Hub, logger *slog.Logger) (*Archiver, error) {
	a := &Archiver{
		cfg:    &cfg.Archive,
		hub:    hub,
		logger: logger.With("component", "archiver"),
	}

	if cfg.Archive.S3.Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Archive.S3.Region))
		if err != nil {
			return nil, fmt.Errorf("loading aws config: %w", err)
		}
		a.s3Client = s3.NewFromConfig(awsCfg)
	}

	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))
	if _, err := c.AddFunc(cfg.Archive.Schedule, a.runOnce); err != nil {
		return nil, fmt.Errorf("adding archive schedule %q: %w", cfg.Archive.Schedule, err)
	}
	a.cron = c
	return a, nil
}

func (a *Archiver) Start() {
	a.logger.Info("archiver started", "schedule", a.cfg.Schedule, "history_file", a.cfg.HistoryFile)
	a.cron.Start()
}

func (a *Archiver) Stop() {
	ctx := a.cron.Stop()
	<-ctx.Done()
}

func (a *Archiver) runOnce() {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		a.logger.Warn("archive run already in progress, skipping")
		return
	}
	a.running = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	start := time.Now()
	n, err := a.archiveOnce(context.Background())
	if err != nil {
		a.logger.Error("archive run failed", "error", err, "duration", time.Since(start))
		a.LastResult = &ArchiveResult{Status: "failed", Timestamp: time.Now()}
		return
	}
	a.logger.Info("archive run completed", "bytes", n, "duration", time.Since(start))
	a.LastResult = &ArchiveResult{Status: "completed", BytesWritten: n, Timestamp: time.Now()}
}

// archiveOnce takes a snapshot of the session listing, compresses it per
// cfg.CompressionMode and appends it to the on-disk history file, then
// optionally uploads that file to S3.
func (a *Archiver) archiveOnce(ctx context.Context) (int64, error) {
	a.hub.Lock()
	listing := a.hub.ListAll()
	a.hub.Unlock()

	line := fmt.Sprintf("%s %q\n", time.Now().UTC().Format(time.RFC3339), listing)

	compressedPath := a.cfg.HistoryFile + a.cfg.CompressionExtension()
	f, err := os.OpenFile(compressedPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("opening history file: %w", err)
	}
	defer f.Close()

	n, err := a.writeCompressed(f, []byte(line))
	if err != nil {
		return 0, fmt.Errorf("writing compressed entry: %w", err)
	}

	if a.s3Client != nil {
		if err := a.uploadToS3(ctx, compressedPath); err != nil {
			return n, fmt.Errorf("uploading to s3: %w", err)
		}
	}
	return n, nil
}

func (a *Archiver) writeCompressed(dst *os.File, payload []byte) (int64, error) {
	switch a.cfg.CompressionMode {
	case "zst":
		w, err := zstd.NewWriter(dst)
		if err != nil {
			return 0, err
		}
		n, err := w.Write(payload)
		if cerr := w.Close(); err == nil {
			err = cerr
		}
		return int64(n), err
	default:
		w := pgzip.NewWriter(dst)
		n, err := w.Write(payload)
		if cerr := w.Close(); err == nil {
			err = cerr
		}
		return int64(n), err
	}
}

func (a *Archiver) uploadToS3(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	key := filepath.ToSlash(filepath.Join(a.cfg.S3.Prefix, filepath.Base(path)))
	_, err = a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &a.cfg.S3.Bucket,
		Key:    &key,
		Body:   f,
	})
	return err
}
