package commands

import (
	"errors"
	"fmt"

	"github.com/wolfeidau/traceledger/internal/audit"
	"github.com/wolfeidau/traceledger/internal/logger"
	"github.com/wolfeidau/traceledger/internal/store/journal"
)

// ArchiveCmd compresses a journal that no server has open. The archive is
// verified by reading it back before the journal is optionally removed.
type ArchiveCmd struct {
	Journal       string `arg:"" help:"path to the journal file" type:"existingfile"`
	Dir           string `help:"archive directory" default:"./data/archive" env:"TRACELEDGER_ARCHIVE_DIR"`
	RemoveSource  bool   `help:"delete the journal after a successful archive" default:"false"`
	RetentionDays int    `help:"delete archives older than this many days, 0 keeps everything" default:"0" env:"TRACELEDGER_ARCHIVE_RETENTION_DAYS"`
}

func (c *ArchiveCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)

	path, err := journal.Archive(c.Journal, c.Dir, c.RemoveSource)
	if err != nil {
		var cleanupErr *journal.ArchiveCleanupError
		if !errors.As(err, &cleanupErr) {
			return err
		}
		log.Warn().Err(cleanupErr.CleanupErr).Str("journal", cleanupErr.JournalPath).Msg("Archived but failed to remove journal")
		path = cleanupErr.ArchivePath
	}

	recs, err := journal.ReadArchive(path)
	if err != nil {
		return fmt.Errorf("failed to read archive %s: %w", path, err)
	}
	if _, err := audit.VerifyChain(recs); err != nil {
		return fmt.Errorf("archive %s failed verification: %w", path, err)
	}
	log.Info().Str("archive", path).Int("records", len(recs)).Msg("Journal archived")

	if c.RetentionDays > 0 {
		removed, err := journal.CleanupArchive(c.Dir, c.RetentionDays)
		if err != nil {
			return err
		}
		log.Info().Int("removed", removed).Int("retention_days", c.RetentionDays).Msg("Old archives removed")
	}
	return nil
}
