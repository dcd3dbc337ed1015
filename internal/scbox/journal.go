package scbox

import (
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"
)

const journalFileName = "scb.log"

// Kind values used in journal entries and statistics, matching the
// original's Spanish vocabulary.
const (
	kindFile      = "archivo"
	kindDirectory = "carpeta"
)

// Journal is the append-only local activity log, mirrored to the remote
// directory each event occurred in after every append.
type Journal struct {
	path   string
	user   string
	logger *slog.Logger
}

// NewJournal builds a Journal rooted at projectRoot/scb.log.
func NewJournal(projectRoot string, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		path:   filepath.Join(projectRoot, journalFileName),
		user:   currentUsername(),
		logger: logger,
	}
}

func currentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	for _, env := range []string{"USER", "USERNAME"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return "unknown"
}

// Append writes one line to the local journal, creating it with its header
// line if it does not yet exist, then best-effort mirrors the entire file to
// remoteDir — the remote directory the event actually occurred in, not
// wherever the session's own cwd happens to be. A mirror failure is logged,
// never returned: the local entry has already survived.
func (j *Journal) Append(client Client, remoteDir, action, kind, description string) error {
	isNew := false
	if _, err := os.Stat(j.path); os.IsNotExist(err) {
		isNew = true
	}

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	now := time.Now().UTC()
	if isNew {
		if _, err := fmt.Fprintf(f, "Log iniciado - %s\n", now.Format("02-01-2006 15:04")); err != nil {
			return err
		}
	}
	if kind == "" {
		kind = kindFile
	}
	line := fmt.Sprintf("%s el usuario %s %s %s %s\n",
		now.Format("02-01-2006 15:04"), j.user, action, kind, description)
	if _, err := f.WriteString(line); err != nil {
		return err
	}

	j.mirror(client, remoteDir)
	return nil
}

// mirror uploads the entire local journal to remoteDir, overwriting whatever
// copy is there. Best-effort: failures are logged only.
func (j *Journal) mirror(client Client, remoteDir string) {
	if client == nil {
		return
	}
	f, err := os.Open(j.path)
	if err != nil {
		j.logger.Warn("journal mirror: could not reopen local log", "error", err)
		return
	}
	defer f.Close()

	remotePath := joinRemote(remoteDir, journalFileName)
	if err := client.Store(remotePath, f); err != nil {
		j.logger.Warn("journal mirror: upload failed, local log retained", "error", err)
	}
}
