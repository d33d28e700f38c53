package runlog

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/keyfleet/internal/errors"
)

// logFile is a run log with metadata for cleanup decisions.
type logFile struct {
	path    string
	modTime time.Time
}

// Cleanup keeps only the newest keep run logs per command in dir.
// keep <= 0 keeps everything. A missing dir is not an error.
func Cleanup(dir string, keep int) error {
	if keep <= 0 || dir == "" {
		return nil
	}
	dir, err := expandHome(dir)
	if err != nil {
		return err
	}

	files, err := listLogs(dir)
	if err != nil {
		return err
	}

	groups := make(map[string][]logFile)
	for _, f := range files {
		cmd := commandName(filepath.Base(f.path))
		groups[cmd] = append(groups[cmd], f)
	}

	for _, group := range groups {
		// Newest first; the name breaks ties since it embeds the timestamp.
		sort.Slice(group, func(i, j int) bool {
			if !group[i].modTime.Equal(group[j].modTime) {
				return group[i].modTime.After(group[j].modTime)
			}
			return group[i].path > group[j].path
		})
		if len(group) <= keep {
			continue
		}
		for _, f := range group[keep:] {
			if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
				return errors.WrapWithCode(err, errors.ErrConfig,
					"Can't delete run log "+f.path,
					"Check your permissions.")
			}
		}
	}
	return nil
}

// listLogs returns the run logs in dir.
func listLogs(dir string) ([]logFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Can't read log directory "+dir,
			"Check your permissions.")
	}

	var files []logFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		if commandName(entry.Name()) == "" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, logFile{
			path:    filepath.Join(dir, entry.Name()),
			modTime: info.ModTime(),
		})
	}
	return files, nil
}

// commandName extracts the command from a run log name of the form
// <command>-YYYYMMDD-HHMMSS[-N].log. It returns "" for other files.
func commandName(name string) string {
	base := strings.TrimSuffix(name, ".log")
	if cmd := stampedCommand(base); cmd != "" {
		return cmd
	}
	i := strings.LastIndexByte(base, '-')
	if i < 0 {
		return ""
	}
	if _, err := strconv.Atoi(base[i+1:]); err != nil {
		return ""
	}
	return stampedCommand(base[:i])
}

func stampedCommand(base string) string {
	if len(base) <= len(timestampLayout)+1 {
		return ""
	}
	stamp := base[len(base)-len(timestampLayout):]
	if _, err := time.Parse(timestampLayout, stamp); err != nil {
		return ""
	}
	if base[len(base)-len(timestampLayout)-1] != '-' {
		return ""
	}
	return base[:len(base)-len(timestampLayout)-1]
}
