package logging

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const dirCleanerInterval = time.Minute

// maxLogAge is a hard retention bound independent of the size cap: this SDK's
// log lines can carry cookie names (redacted, but still routing metadata) and
// trace ids correlating a real login attempt, so a rotated log is removed
// once it's this old even if the directory is nowhere near its size cap.
const maxLogAge = 30 * 24 * time.Hour

var dirCleanerCancel context.CancelFunc

// configureDirCleanerLocked starts (or restarts) a background goroutine that
// sweeps dir on a timer, first deleting anything older than maxLogAge, then
// evicting the oldest remaining *.log / *.log.gz files until the directory's
// combined size is back under maxTotalSizeMB. protectedPath (the file
// currently being written to) is never removed by either pass. Must be
// called with writerMu held.
func configureDirCleanerLocked(dir string, maxTotalSizeMB int, protectedPath string) {
	stopDirCleanerLocked()
	if maxTotalSizeMB <= 0 || strings.TrimSpace(dir) == "" {
		return
	}
	maxBytes := int64(maxTotalSizeMB) * 1024 * 1024
	ctx, cancel := context.WithCancel(context.Background())
	dirCleanerCancel = cancel
	go runDirCleaner(ctx, filepath.Clean(dir), maxBytes, strings.TrimSpace(protectedPath))
}

func stopDirCleanerLocked() {
	if dirCleanerCancel != nil {
		dirCleanerCancel()
		dirCleanerCancel = nil
	}
}

func runDirCleaner(ctx context.Context, dir string, maxBytes int64, protected string) {
	ticker := time.NewTicker(dirCleanerInterval)
	defer ticker.Stop()

	sweep := func() {
		result, err := sweepDir(dir, maxBytes, protected, time.Now())
		if err != nil {
			log.WithError(err).Warn("logging: failed to sweep log directory")
			return
		}
		if result.agedOut > 0 {
			log.Debugf("logging: removed %d log file(s) past the retention window", result.agedOut)
		}
		if result.evicted > 0 {
			log.Debugf("logging: removed %d old log file(s) to stay under the size cap", result.evicted)
		}
	}

	sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

type logFile struct {
	path    string
	size    int64
	modTime time.Time
}

type sweepResult struct {
	agedOut int
	evicted int
}

// sweepDir applies the retention-age pass followed by the size-cap pass and
// reports how many files each pass removed. now is threaded through so tests
// don't depend on wall-clock file ages.
func sweepDir(dir string, maxBytes int64, protected string, now time.Time) (sweepResult, error) {
	files, err := listRotatedLogs(dir)
	if err != nil {
		return sweepResult{}, err
	}

	remaining, agedOut := removeFilesOlderThan(files, protected, now.Add(-maxLogAge))
	evicted, err := evictUntilUnderCap(remaining, maxBytes, protected)
	if err != nil {
		return sweepResult{agedOut: agedOut}, err
	}
	return sweepResult{agedOut: agedOut, evicted: evicted}, nil
}

func listRotatedLogs(dir string) ([]logFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []logFile
	for _, entry := range entries {
		if entry.IsDir() || !isRotatedLogName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, logFile{path: filepath.Join(dir, entry.Name()), size: info.Size(), modTime: info.ModTime()})
	}
	return files, nil
}

// removeFilesOlderThan deletes every file in files with modTime before
// cutoff (except protected) and returns the survivors plus a count removed.
func removeFilesOlderThan(files []logFile, protected string, cutoff time.Time) ([]logFile, int) {
	var survivors []logFile
	removed := 0
	for _, f := range files {
		if f.modTime.After(cutoff) || isProtected(f.path, protected) {
			survivors = append(survivors, f)
			continue
		}
		if err := os.Remove(f.path); err != nil {
			log.WithError(err).Warnf("logging: failed to remove aged-out log file: %s", filepath.Base(f.path))
			survivors = append(survivors, f)
			continue
		}
		removed++
	}
	return survivors, removed
}

// evictUntilUnderCap removes the oldest files in files, skipping protected,
// until their combined size is at or under maxBytes.
func evictUntilUnderCap(files []logFile, maxBytes int64, protected string) (int, error) {
	if maxBytes <= 0 {
		return 0, nil
	}
	var total int64
	for _, f := range files {
		total += f.size
	}
	if total <= maxBytes {
		return 0, nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })

	deleted := 0
	for _, f := range files {
		if total <= maxBytes {
			break
		}
		if isProtected(f.path, protected) {
			continue
		}
		if err := os.Remove(f.path); err != nil {
			log.WithError(err).Warnf("logging: failed to remove old log file: %s", filepath.Base(f.path))
			continue
		}
		total -= f.size
		deleted++
	}
	return deleted, nil
}

func isProtected(path, protected string) bool {
	return protected != "" && filepath.Clean(path) == protected
}

func isRotatedLogName(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".log") || strings.HasSuffix(lower, ".log.gz")
}
