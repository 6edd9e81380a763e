package journal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/traceledger/internal/models"
)

// ArchiveCleanupError indicates the archive was created successfully but
// removing the source journal failed
type ArchiveCleanupError struct {
	ArchivePath string
	JournalPath string
	CleanupErr  error
}

func (e *ArchiveCleanupError) Error() string {
	return fmt.Sprintf("archive created at %s but failed to remove journal %s: %v",
		e.ArchivePath, e.JournalPath, e.CleanupErr)
}

func (e *ArchiveCleanupError) Unwrap() error {
	return e.CleanupErr
}

// Archive compresses a closed journal with zstd into archiveDir and returns
// the archive path. The archive name carries the UTC time it was taken.
// When removeSource is set the journal file is deleted afterwards.
func Archive(journalPath, archiveDir string, removeSource bool) (string, error) {
	src, err := os.Open(journalPath)
	if err != nil {
		return "", fmt.Errorf("failed to open journal: %w", err)
	}
	defer src.Close()

	if err := readHeader(src); err != nil {
		return "", fmt.Errorf("not a journal file: %w", err)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind journal: %w", err)
	}

	srcInfo, err := src.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat journal: %w", err)
	}
	originalSize := srcInfo.Size()

	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(journalPath), filepath.Ext(journalPath))
	archivePath := filepath.Join(archiveDir, fmt.Sprintf("%s-%s.jrn.zst", base, time.Now().UTC().Format("20060102T150405Z")))

	dst, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	// level 3 = SpeedDefault
	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		dst.Close()
		os.Remove(archivePath)
		return "", fmt.Errorf("failed to create encoder: %w", err)
	}

	written, err := io.Copy(enc, src)
	if err != nil {
		if closeErr := enc.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close encoder during error cleanup")
		}
		dst.Close()
		os.Remove(archivePath)
		return "", fmt.Errorf("failed to compress: %w", err)
	}

	if err := enc.Close(); err != nil {
		dst.Close()
		os.Remove(archivePath)
		return "", fmt.Errorf("failed to close encoder: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(archivePath)
		return "", fmt.Errorf("failed to close archive: %w", err)
	}

	dstInfo, err := os.Stat(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to stat archive: %w", err)
	}

	ratio := 0.0
	if originalSize > 0 {
		ratio = (1.0 - float64(dstInfo.Size())/float64(originalSize)) * 100
	}

	log.Info().
		Str("journal_path", journalPath).
		Int64("original_bytes", originalSize).
		Int64("compressed_bytes", dstInfo.Size()).
		Float64("compression_ratio_pct", ratio).
		Int64("written", written).
		Str("archive_path", archivePath).
		Msg("Journal archived with zstd compression")

	if removeSource {
		if err := os.Remove(journalPath); err != nil {
			return archivePath, &ArchiveCleanupError{
				ArchivePath: archivePath,
				JournalPath: journalPath,
				CleanupErr:  err,
			}
		}
	}

	return archivePath, nil
}

// ReadArchive decompresses an archive and returns its valid records.
func ReadArchive(archivePath string) ([]*models.AuditRecord, error) {
	src, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer src.Close()

	dec, err := zstd.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	defer dec.Close()

	r := bufio.NewReader(dec)
	if err := readHeader(r); err != nil {
		return nil, err
	}

	var (
		out       []*models.AuditRecord
		lengthBuf = make([]byte, 4)
	)
	for {
		if _, err := io.ReadFull(r, lengthBuf); err != nil {
			if err == io.EOF {
				return out, nil
			}
			return nil, fmt.Errorf("failed to read record length: %w", err)
		}
		length := binary.LittleEndian.Uint32(lengthBuf)
		if length < recordOverhead || length > maxRecordSize {
			return nil, fmt.Errorf("invalid record length: %d", length)
		}
		data := make([]byte, length)
		copy(data, lengthBuf)
		if _, err := io.ReadFull(r, data[4:]); err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// CleanupArchive removes archives older than the retention period
func CleanupArchive(archiveDir string, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		log.Debug().Msg("Archive cleanup disabled (retentionDays <= 0)")
		return 0, nil
	}

	entries, err := os.ReadDir(archiveDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read archive directory: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jrn.zst") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to get file info, skipping")
			continue
		}

		if info.ModTime().Before(cutoff) {
			filePath := filepath.Join(archiveDir, entry.Name())
			if err := os.Remove(filePath); err != nil {
				log.Warn().Err(err).Str("file", filePath).Msg("Failed to delete old archive file")
				continue
			}
			deleted++
		}
	}

	if deleted > 0 {
		log.Info().
			Str("archive_dir", archiveDir).
			Int("deleted_files", deleted).
			Msg("Archive cleanup completed")
	}

	return deleted, nil
}
