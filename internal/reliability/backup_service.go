// Package reliability keeps the governor database healthy: periodic WAL
// maintenance and off-site snapshots.
package reliability

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskgovernor/internal/database"
)

const (
	backupFilePrefix    = "risk_governor-"
	backupFileSuffix    = ".db"
	backupTimestampForm = "2006-01-02-150405"

	// minBackupsToKeep survive rotation regardless of age
	minBackupsToKeep = 3
)

// BackupInfo represents information about a stored snapshot
type BackupInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// BackupService snapshots the database and uploads it to object storage
type BackupService struct {
	db            *database.DB
	store         ObjectStore
	prefix        string
	retentionDays int
	stagingDir    string
	now           func() time.Time
	log           zerolog.Logger
}

// NewBackupService creates a new backup service.
// stagingDir holds the temporary snapshot; empty means the OS temp dir.
func NewBackupService(db *database.DB, store ObjectStore, prefix string, retentionDays int, stagingDir string, log zerolog.Logger) *BackupService {
	return &BackupService{
		db:            db,
		store:         store,
		prefix:        strings.Trim(prefix, "/"),
		retentionDays: retentionDays,
		stagingDir:    stagingDir,
		now:           time.Now,
		log:           log.With().Str("service", "backup").Logger(),
	}
}

// WithClock overrides the clock used for snapshot names and rotation
func (s *BackupService) WithClock(now func() time.Time) *BackupService {
	s.now = now
	return s
}

// KeyFor returns the object key of a snapshot taken at t
func (s *BackupService) KeyFor(t time.Time) string {
	name := backupFilePrefix + t.UTC().Format(backupTimestampForm) + backupFileSuffix
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// CreateAndUploadBackup writes a consistent snapshot with VACUUM INTO and
// uploads it. It returns the object key.
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) (string, error) {
	s.log.Info().Msg("Starting backup")
	startTime := time.Now()

	staging, err := os.MkdirTemp(s.stagingDir, "risk-governor-backup-")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	snapshot := filepath.Join(staging, "snapshot.db")
	if err := s.db.SnapshotTo(ctx, snapshot); err != nil {
		return "", fmt.Errorf("failed to snapshot database: %w", err)
	}

	checksum, err := calculateChecksum(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}

	f, err := os.Open(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat snapshot: %w", err)
	}

	key := s.KeyFor(s.now())
	metadata := map[string]string{
		"checksum":       checksum,
		"schema-version": database.SchemaVersion,
	}
	if err := s.store.Upload(ctx, key, f, metadata); err != nil {
		return "", fmt.Errorf("failed to upload backup: %w", err)
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("key", key).
		Int64("size_bytes", info.Size()).
		Str("checksum", checksum).
		Msg("Backup completed successfully")

	return key, nil
}

// ListBackups lists stored snapshots, newest first
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	listPrefix := backupFilePrefix
	if s.prefix != "" {
		listPrefix = s.prefix + "/" + backupFilePrefix
	}

	objects, err := s.store.List(ctx, listPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	now := s.now()
	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		name := path.Base(obj.Key)
		if !strings.HasPrefix(name, backupFilePrefix) || !strings.HasSuffix(name, backupFileSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, backupFilePrefix), backupFileSuffix)
		ts, err := time.Parse(backupTimestampForm, stamp)
		if err != nil {
			s.log.Warn().Str("key", obj.Key).Msg("Failed to parse timestamp from backup key")
			continue
		}
		backups = append(backups, BackupInfo{
			Key:       obj.Key,
			Timestamp: ts,
			SizeBytes: obj.Size,
			AgeHours:  int64(now.Sub(ts).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// RotateOldBackups deletes snapshots older than the retention period.
// The newest minBackupsToKeep are always kept; retention 0 keeps everything.
func (s *BackupService) RotateOldBackups(ctx context.Context) (int, error) {
	if s.retentionDays == 0 {
		return 0, nil
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, err
	}
	if len(backups) <= minBackupsToKeep {
		return 0, nil
	}

	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	var expired []string
	for _, b := range backups[minBackupsToKeep:] {
		if b.Timestamp.Before(cutoff) {
			expired = append(expired, b.Key)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}

	if err := s.store.Delete(ctx, expired); err != nil {
		return 0, fmt.Errorf("failed to delete expired backups: %w", err)
	}

	s.log.Info().
		Int("deleted", len(expired)).
		Int("remaining", len(backups)-len(expired)).
		Msg("Backup rotation completed")
	return len(expired), nil
}

// calculateChecksum calculates SHA256 checksum of a file
func calculateChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

// BackupJob runs a backup followed by rotation on the scheduler
type BackupJob struct {
	service *BackupService
	timeout time.Duration
	log     zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(service *BackupService, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service: service,
		timeout: 10 * time.Minute,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes the backup job. Rotation failures are logged, not returned.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, err := j.service.CreateAndUploadBackup(ctx); err != nil {
		return err
	}
	if _, err := j.service.RotateOldBackups(ctx); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}
	return nil
}
