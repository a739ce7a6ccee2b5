package cli

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	sessionFilePrefix = "session-"
	sessionFileSuffix = ".json"
)

// sessionFile is the ephemeral scope of the shell with the given pid.
func sessionFile(dir string, pid int) string {
	return filepath.Join(dir, sessionFilePrefix+strconv.Itoa(pid)+sessionFileSuffix)
}

// sweepSessionFiles deletes the session files of shells that have exited,
// so a session-only login ends with its terminal and a later shell reusing
// the pid does not inherit it.
func sweepSessionFiles(dir string, alive func(pid int) bool, log *slog.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn("list session files failed", "err", err)
		return
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, sessionFilePrefix) || !strings.HasSuffix(name, sessionFileSuffix) {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, sessionFilePrefix), sessionFileSuffix))
		if err != nil || pid <= 0 || alive(pid) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			log.Warn("remove stale session file failed", "file", name, "err", err)
			continue
		}
		log.Debug("removed session of exited shell", "pid", pid)
	}
}
