package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Artifact kinds stored per session
const (
	KindCleaned = "cleaned"
	KindReport  = "report"
)

// LocalStorage keeps raw uploads and rendered artifacts on the local
// filesystem, one directory per session.
type LocalStorage struct {
	basePath string
	logger   *slog.Logger
}

// LocalStorageConfig for local storage
type LocalStorageConfig struct {
	BasePath string // Base directory, e.g. TEMP_DIR
}

// FileMetadata contains information about stored files
type FileMetadata struct {
	SessionID    string
	OriginalName string
	StoredPath   string
	Size         int64
	Hash         string
	ContentType  string
	CreatedAt    time.Time
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(cfg *LocalStorageConfig, logger *slog.Logger) (*LocalStorage, error) {
	if err := os.MkdirAll(cfg.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &LocalStorage{
		basePath: cfg.BasePath,
		logger:   logger,
	}, nil
}

// SaveUpload stores the raw upload of a session and hashes it while copying
func (s *LocalStorage) SaveUpload(ctx context.Context, sessionID string, filename string, reader io.Reader) (*FileMetadata, error) {
	uploadDir := filepath.Join(s.basePath, "uploads", sessionID)
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	// Client filenames never choose the directory
	destPath := filepath.Join(uploadDir, safeName(filename))

	destFile, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create destination file: %w", err)
	}
	defer destFile.Close()

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(destFile, hash), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to copy file: %w", err)
	}

	metadata := &FileMetadata{
		SessionID:    sessionID,
		OriginalName: filename,
		StoredPath:   destPath,
		Size:         size,
		Hash:         hex.EncodeToString(hash.Sum(nil)),
		ContentType:  getContentType(filename),
		CreatedAt:    time.Now(),
	}

	s.logger.Info("upload stored",
		slog.String("session_id", sessionID),
		slog.String("filename", filename),
		slog.Int64("size", size),
		slog.String("hash", metadata.Hash))

	return metadata, nil
}

// SaveArtifact writes a rendered artifact (cleaned file or report)
func (s *LocalStorage) SaveArtifact(ctx context.Context, sessionID string, kind string, filename string, data []byte) (string, error) {
	artifactDir := filepath.Join(s.basePath, "processed", sessionID, kind)
	if err := os.MkdirAll(artifactDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	filePath := filepath.Join(artifactDir, safeName(filename))
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	s.logger.Debug("artifact saved",
		slog.String("session_id", sessionID),
		slog.String("kind", kind),
		slog.String("filename", filename),
		slog.Int("size", len(data)))

	return filePath, nil
}

// DeleteSession removes the upload and every artifact of a session
func (s *LocalStorage) DeleteSession(ctx context.Context, sessionID string) error {
	uploadDir := filepath.Join(s.basePath, "uploads", sessionID)
	if err := os.RemoveAll(uploadDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete upload directory: %w", err)
	}

	processedDir := filepath.Join(s.basePath, "processed", sessionID)
	if err := os.RemoveAll(processedDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete artifact directory: %w", err)
	}

	s.logger.Info("session files deleted",
		slog.String("session_id", sessionID))

	return nil
}

// CleanupOldFiles removes session directories older than the given age.
// It catches files whose session vanished without an eviction.
func (s *LocalStorage) CleanupOldFiles(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoffTime := time.Now().Add(-olderThan)
	removed := 0

	for _, sub := range []string{"uploads", "processed"} {
		n, err := s.cleanupDirectory(filepath.Join(s.basePath, sub), cutoffTime)
		if err != nil {
			return removed, fmt.Errorf("failed to cleanup %s: %w", sub, err)
		}
		removed += n
	}

	if removed > 0 {
		s.logger.Info("old session files removed",
			slog.Int("removed", removed),
			slog.Duration("older_than", olderThan))
	}

	return removed, nil
}

// cleanupDirectory removes directories older than cutoff time
func (s *LocalStorage) cleanupDirectory(dir string, cutoffTime time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dirPath := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("failed to get file info",
				slog.String("path", dirPath),
				slog.Any("error", err))
			continue
		}

		if !info.ModTime().Before(cutoffTime) {
			continue
		}
		if err := os.RemoveAll(dirPath); err != nil {
			s.logger.Warn("failed to remove directory",
				slog.String("path", dirPath),
				slog.Any("error", err))
			continue
		}
		removed++
	}

	return removed, nil
}

func safeName(filename string) string {
	name := filepath.Base(filename)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "file"
	}
	return name
}

// getContentType returns the content type based on file extension
func getContentType(filename string) string {
	switch filepath.Ext(filename) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
