package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// BackupSuffix is appended to the database path to form the backup path.
const BackupSuffix = ".backup"

// BackupPath returns the sibling path the backup is written to.
func (db *DB) BackupPath() string {
	return db.path + BackupSuffix
}

// Backup writes a consistent point-in-time copy of the database next to it.
// The copy is produced with VACUUM INTO under a unique temporary name and only
// renamed over the previous backup once complete, so a failed run never leaves
// a truncated backup file behind. In WAL mode the copy reads a snapshot and
// does not block concurrent writers.
func (db *DB) Backup(ctx context.Context) (string, error) {
	target := db.BackupPath()
	tmp := filepath.Join(filepath.Dir(target), fmt.Sprintf(".%s.%s.tmp", filepath.Base(target), uuid.NewString()))

	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, tmp); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("vacuum into %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("rename backup: %w", err)
	}

	return target, nil
}
