package scbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Reconciler drives the recursive tree walk. It borrows the Session (Client)
// for the duration of a walk and returns the (possibly replaced) handle so
// the caller observes reconnection — the Go rendering of spec §9's "the
// reconciler must receive a Session and return a possibly different one".
type Reconciler struct {
	Patterns    []string
	Reconnector *Reconnector
}

// NewReconciler builds a Reconciler with the given effective ignore patterns.
func NewReconciler(patterns []string, reconnector *Reconnector) *Reconciler {
	return &Reconciler{Patterns: patterns, Reconnector: reconnector}
}

// DownloadWalk mirrors descargar_archivos_recursivo: recursively pulls
// remoteDir into localDir, creating local directories as needed and
// downloading files the oracle says have changed.
func (r *Reconciler) DownloadWalk(ctx context.Context, st *State, client Client, remoteDir, localDir string) (Client, error) {
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return client, fmt.Errorf("scbox: mkdir local %s: %w", localDir, err)
	}

	st.Client = client
	for attempt := 0; ; attempt++ {
		err := r.downloadWalkOnce(ctx, st, st.Client, remoteDir, localDir)
		if err == nil {
			return st.Client, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return st.Client, err
		}
		if !isConnectionClass(err) {
			return st.Client, err
		}
		if attempt >= MaxRetries {
			return st.Client, fmt.Errorf("%w (download %s): %v", ErrRetriesExceeded, remoteDir, err)
		}
		fresh, rerr := r.Reconnector.Ensure(ctx, st.Client)
		if rerr != nil {
			return st.Client, rerr
		}
		st.Client = fresh
	}
}

func (r *Reconciler) downloadWalkOnce(ctx context.Context, st *State, client Client, remoteDir, localDir string) error {
	entries, err := client.List(remoteDir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if isDotOrDotDot(e.Name) || IsIgnored(e.Name, r.Patterns) {
			continue
		}
		if sanitized := sanitizeBasename(e.Name); sanitized != e.Name {
			st.logger().Warn("remote listing entry rejected, looked like a path escape", "name", e.Name)
			st.Stats.Errors++
			continue
		}

		isDir, kindErr := entryIsDir(client, remoteDir, e)
		if kindErr != nil {
			if isConnectionClass(kindErr) {
				return kindErr
			}
			st.logger().Warn("could not classify remote entry, skipping", "name", e.Name, "error", kindErr)
			st.Stats.Errors++
			continue
		}

		childRemote := joinRemote(remoteDir, e.Name)
		if isDir {
			childLocal := filepath.Join(localDir, e.Name)
			created := false
			if _, statErr := os.Stat(childLocal); os.IsNotExist(statErr) {
				created = true
			}
			if err := os.MkdirAll(childLocal, 0o755); err != nil {
				st.logger().Warn("could not create local directory, skipping", "path", childLocal, "error", err)
				st.Stats.Errors++
				continue
			}
			if created {
				st.Stats.DirsCreated++
				if jerr := st.Journal.Append(st.Client, remoteDir, "created", kindDirectory, e.Name); jerr != nil {
					st.logger().Warn("journal append failed", "error", jerr)
				}
			}

			newClient, walkErr := r.DownloadWalk(ctx, st, client, childRemote, childLocal)
			client = newClient
			if walkErr != nil {
				if isConnectionClass(walkErr) {
					return walkErr
				}
				st.logger().Warn("subtree download failed, continuing", "path", childRemote, "error", walkErr)
				st.Stats.Errors++
			}
			continue
		}

		if err := r.maybeDownloadFile(st, client, remoteDir, localDir, e.Name); err != nil {
			if isConnectionClass(err) {
				return err
			}
			st.logger().Warn("download failed, continuing", "name", e.Name, "error", err)
		}

		if st.DownloadCount >= RotationThreshold {
			fresh, rerr := r.Reconnector.Rotate(client)
			if rerr != nil {
				return rerr
			}
			client = fresh
			st.Client = fresh
			st.DownloadCount = 0
		}
	}
	return nil
}

func (r *Reconciler) maybeDownloadFile(st *State, client Client, remoteDir, localDir, basename string) error {
	remotePath := joinRemote(remoteDir, basename)
	localPath := filepath.Join(localDir, basename)

	var localTime *time.Time
	if info, err := os.Stat(localPath); err == nil {
		t := info.ModTime().UTC()
		localTime = &t
	}
	remoteTime, err := client.GetModTime(remotePath)
	if err != nil {
		return err
	}

	if !needsSync(localTime, remoteTime, defaultTolerance) {
		return nil
	}
	return Get(st, remoteDir, localDir, basename)
}

// UploadWalk mirrors subir_archivos_recursivo: recursively pushes localDir
// into remoteDir, creating remote directories as needed and uploading files
// the oracle says have changed.
func (r *Reconciler) UploadWalk(ctx context.Context, st *State, client Client, localDir, remoteDir string) (Client, error) {
	st.Client = client
	for attempt := 0; ; attempt++ {
		err := r.uploadWalkOnce(ctx, st, st.Client, localDir, remoteDir)
		if err == nil {
			return st.Client, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return st.Client, err
		}
		if !isConnectionClass(err) {
			return st.Client, err
		}
		if attempt >= MaxRetries {
			return st.Client, fmt.Errorf("%w (upload %s): %v", ErrRetriesExceeded, localDir, err)
		}
		fresh, rerr := r.Reconnector.Ensure(ctx, st.Client)
		if rerr != nil {
			return st.Client, rerr
		}
		st.Client = fresh
	}
}

func (r *Reconciler) uploadWalkOnce(ctx context.Context, st *State, client Client, localDir, remoteDir string) error {
	entries, err := os.ReadDir(localDir)
	if err != nil {
		return fmt.Errorf("scbox: read local dir %s: %w", localDir, err)
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := e.Name()
		if name == journalFileName || IsIgnored(name, r.Patterns) {
			continue
		}

		if e.IsDir() {
			childRemote := joinRemote(remoteDir, name)
			existed, err := ensureRemoteDir(client, childRemote)
			if err != nil {
				if isConnectionClass(err) {
					return err
				}
				st.logger().Warn("could not create remote directory, skipping", "path", childRemote, "error", err)
				st.Stats.Errors++
				continue
			}
			if !existed {
				st.Stats.DirsCreated++
				if jerr := st.Journal.Append(st.Client, remoteDir, "created", kindDirectory, name); jerr != nil {
					st.logger().Warn("journal append failed", "error", jerr)
				}
			}

			newClient, walkErr := r.UploadWalk(ctx, st, client, filepath.Join(localDir, name), childRemote)
			client = newClient
			if walkErr != nil {
				if isConnectionClass(walkErr) {
					return walkErr
				}
				st.logger().Warn("subtree upload failed, continuing", "path", childRemote, "error", walkErr)
				st.Stats.Errors++
			}
			continue
		}

		if err := r.maybeUploadFile(st, client, localDir, remoteDir, name); err != nil {
			if isConnectionClass(err) {
				return err
			}
			st.logger().Warn("upload failed, continuing", "name", name, "error", err)
		}
	}
	return nil
}

func (r *Reconciler) maybeUploadFile(st *State, client Client, localDir, remoteDir, basename string) error {
	localPath := filepath.Join(localDir, basename)
	remotePath := joinRemote(remoteDir, basename)

	info, err := os.Stat(localPath)
	if err != nil {
		return err
	}
	localTime := info.ModTime().UTC()

	remoteTime, err := client.GetModTime(remotePath)
	if err != nil {
		return err
	}

	if !needsSync(&localTime, remoteTime, defaultTolerance) {
		return nil
	}
	return Put(st, localDir, remoteDir, basename)
}

// ensureRemoteDir attempts to chdir into path; on failure it tries mkdir
// then chdir again. Returns whether the directory already existed.
func ensureRemoteDir(client Client, path string) (existed bool, err error) {
	if err := client.Chdir(path); err == nil {
		_ = client.ChdirParent()
		return true, nil
	}
	if err := client.Mkdir(path); err != nil {
		return false, err
	}
	if err := client.Chdir(path); err != nil {
		return false, err
	}
	_ = client.ChdirParent()
	return false, nil
}

// entryIsDir classifies a listing entry. Most servers report the kind
// directly via MLSD (Entry.Kind); for servers where the client could not
// tell, it falls back to the chdir-probe contract from spec §4.3.
func entryIsDir(client Client, remoteDir string, e Entry) (bool, error) {
	switch e.Kind {
	case KindDirectory:
		return true, nil
	case KindFile:
		return false, nil
	default:
		return IsDir(client, joinRemote(remoteDir, e.Name))
	}
}
