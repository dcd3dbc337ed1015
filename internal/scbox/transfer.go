package scbox

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// blockSize is the fixed chunk size used for both directions of transfer.
const blockSize = 8 * 1024

// ProgressFunc is optionally invoked with cumulative bytes transferred.
type ProgressFunc func(bytesDone int64)

// State is the explicit, shared, mutable context threaded through one
// reconciler invocation — the re-architected replacement for what the
// original source kept as module-scoped globals (DownloadCounter,
// Statistics): a Session (Client), a Journal, a Stats accumulator, a
// download counter, a retry budget, and a logger.
type State struct {
	Client        Client
	Journal       *Journal
	Stats         *Stats
	DownloadCount int
	Retries       int
	Logger        *slog.Logger
	Progress      ProgressFunc
}

func (s *State) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Get downloads one file per spec §4.5: stage into a temp file, verify size
// if the remote reports one, rename atomically over the destination, and
// propagate the remote mtime to the local file.
func Get(st *State, remoteDir, localDir, basename string) error {
	if err := st.Client.NoOp(); err != nil {
		return wrapConn(err)
	}

	remotePath := joinRemote(remoteDir, basename)
	localPath := filepath.Join(localDir, basename)
	tmpPath := localPath + ".tmp"

	expectedSize, haveSize, _ := st.Client.Size(remotePath)

	tmp, err := os.Create(tmpPath)
	if err != nil {
		st.Stats.Errors++
		return fmt.Errorf("scbox: create temp file %s: %w", tmpPath, err)
	}

	src, err := st.Client.Retrieve(remotePath)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		st.Stats.Errors++
		return err
	}
	defer src.Close()

	written, err := copyBlocks(tmp, src, st.Progress)
	closeErr := tmp.Close()
	if err != nil {
		os.Remove(tmpPath)
		st.Stats.Errors++
		return fmt.Errorf("scbox: retrieve %s: %w", remotePath, err)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		st.Stats.Errors++
		return closeErr
	}

	if haveSize && written != expectedSize {
		os.Remove(tmpPath)
		st.Stats.Errors++
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrIntegrity, expectedSize, written)
	}

	if _, err := os.Stat(localPath); err == nil {
		if err := os.Remove(localPath); err != nil {
			os.Remove(tmpPath)
			st.Stats.Errors++
			return fmt.Errorf("scbox: replace %s: %w", localPath, err)
		}
	}
	if err := os.Rename(tmpPath, localPath); err != nil {
		st.Stats.Errors++
		return fmt.Errorf("scbox: rename %s: %w", tmpPath, err)
	}

	if remoteTime, err := st.Client.GetModTime(remotePath); err == nil && remoteTime != nil {
		t := remoteTime.Truncate(time.Second)
		if err := os.Chtimes(localPath, t, t); err != nil {
			st.logger().Warn("could not propagate remote mtime", "path", localPath, "error", err)
		}
	}

	if err := st.Journal.Append(st.Client, remoteDir, "downloaded", kindFile, basename); err != nil {
		st.logger().Warn("journal append failed", "error", err)
	}

	st.Stats.FilesDownloaded++
	st.Stats.BytesTransfered += written
	st.DownloadCount++
	return nil
}

// Put uploads one file per spec §4.5: store to a remote temp path, delete any
// existing destination, rename into place, then best-effort set-mtime.
func Put(st *State, localDir, remoteDir, basename string) error {
	localPath := filepath.Join(localDir, basename)
	info, err := os.Stat(localPath)
	if err != nil {
		st.Stats.Errors++
		return fmt.Errorf("scbox: local file missing %s: %w", localPath, err)
	}

	f, err := os.Open(localPath)
	if err != nil {
		st.Stats.Errors++
		return fmt.Errorf("scbox: open %s: %w", localPath, err)
	}
	defer f.Close()

	remotePath := joinRemote(remoteDir, basename)
	tmpPath := remotePath + ".tmp"

	if err := storeBlocks(st.Client, tmpPath, f, st.Progress); err != nil {
		st.Stats.Errors++
		return wrapConn(err)
	}

	_, haveSize, err := st.Client.Size(remotePath)
	if err != nil {
		st.Stats.Errors++
		return err
	}
	if haveSize {
		if err := st.Client.Delete(remotePath); err != nil {
			st.logger().Warn("could not delete existing remote file before rename", "path", remotePath, "error", err)
		}
	}
	if err := st.Client.Rename(tmpPath, remotePath); err != nil {
		st.Stats.Errors++
		return fmt.Errorf("scbox: rename %s: %w", tmpPath, err)
	}

	if err := st.Client.SetModTime(remotePath, info.ModTime().UTC()); err != nil {
		st.logger().Warn("set-mtime failed, non-fatal", "path", remotePath, "error", err)
	}

	if err := st.Journal.Append(st.Client, remoteDir, "uploaded", kindFile, basename); err != nil {
		st.logger().Warn("journal append failed", "error", err)
	}

	st.Stats.FilesUploaded++
	st.Stats.BytesTransfered += info.Size()
	return nil
}

// copyBlocks copies src into dst in fixed blockSize chunks, invoking progress
// after each block.
func copyBlocks(dst io.Writer, src io.Reader, progress ProgressFunc) (int64, error) {
	buf := make([]byte, blockSize)
	var total int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
			if progress != nil {
				progress(total)
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

// storeBlocks wraps Client.Store with the same block-at-a-time progress
// semantics as copyBlocks, using a pipe so the underlying Store call still
// sees a plain io.Reader.
func storeBlocks(client Client, remotePath string, src io.Reader, progress ProgressFunc) error {
	if progress == nil {
		return client.Store(remotePath, src)
	}
	pr, pw := io.Pipe()
	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Store(remotePath, pr)
	}()
	_, copyErr := copyBlocks(pw, src, progress)
	pw.CloseWithError(copyErr)
	storeErr := <-errCh
	if copyErr != nil {
		return copyErr
	}
	return storeErr
}

func joinRemote(dir, basename string) string {
	if dir == "" || dir == "/" {
		return "/" + basename
	}
	return dir + "/" + basename
}
