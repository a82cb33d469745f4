package configstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	backupPrefix = "config_backup_"
	backupSuffix = ".json"

	// backupTimeLayout names snapshots with second granularity.
	backupTimeLayout = "2006-01-02_15-04-05"

	// DefaultMaxBackups is the retention cap for snapshots.
	DefaultMaxBackups = 10
)

// Backup describes one snapshot file.
type Backup struct {
	Filename string    `json:"filename" example:"config_backup_2026-10-19_14-03-22.json"`
	Date     string    `json:"date" example:"2026-10-19 14:03:22"`
	Size     int64     `json:"size" example:"812"`
	Created  time.Time `json:"-"`

	seq     int
	modTime time.Time
}

// backupName returns the snapshot filename for t. seq > 1 disambiguates
// snapshots taken within the same second.
func backupName(t time.Time, seq int) string {
	name := backupPrefix + t.Format(backupTimeLayout)
	if seq > 1 {
		name += "-" + strconv.Itoa(seq)
	}
	return name + backupSuffix
}

// parseBackupName extracts the timestamp and sequence from a snapshot
// filename. ok is false for names that are not snapshots.
func parseBackupName(name string) (t time.Time, seq int, ok bool) {
	if !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
		return time.Time{}, 0, false
	}
	stem := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), backupSuffix)
	if len(stem) < len(backupTimeLayout) {
		return time.Time{}, 0, false
	}
	t, err := time.ParseInLocation(backupTimeLayout, stem[:len(backupTimeLayout)], time.Local)
	if err != nil {
		return time.Time{}, 0, false
	}
	seq = 1
	if rest := stem[len(backupTimeLayout):]; rest != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(rest, "-"))
		if err != nil || !strings.HasPrefix(rest, "-") || n < 2 {
			return time.Time{}, 0, false
		}
		seq = n
	}
	return t, seq, true
}

// validateBackupName rejects anything that is not a bare snapshot
// filename, including path traversal attempts.
func validateBackupName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty backup name", ErrNotFound)
	}
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) || strings.HasPrefix(name, "..") {
		return fmt.Errorf("%w: invalid backup name %q", ErrNotFound, name)
	}
	if _, _, ok := parseBackupName(name); !ok {
		return fmt.Errorf("%w: %q is not a backup file", ErrNotFound, name)
	}
	return nil
}

// scanBackups lists snapshot files in dir, oldest first.
func scanBackups(dir string) ([]Backup, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	backups := make([]Backup, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		created, seq, ok := parseBackupName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Backup{
			Filename: entry.Name(),
			Date:     created.Format("2006-01-02 15:04:05"),
			Size:     info.Size(),
			Created:  created,
			seq:      seq,
			modTime:  info.ModTime(),
		})
	}

	sort.SliceStable(backups, func(i, j int) bool {
		return backupLess(backups[i], backups[j])
	})
	return backups, nil
}

// backupLess orders by name timestamp, then modification time, then the
// same-second sequence number.
func backupLess(a, b Backup) bool {
	if !a.Created.Equal(b.Created) {
		return a.Created.Before(b.Created)
	}
	if !a.modTime.Equal(b.modTime) {
		return a.modTime.Before(b.modTime)
	}
	return a.seq < b.seq
}
