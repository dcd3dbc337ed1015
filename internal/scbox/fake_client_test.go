package scbox

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// fakeFile is one in-memory remote file.
type fakeFile struct {
	data    []byte
	modTime time.Time
}

// fakeClient is an in-memory stand-in for an FTP session, mirroring the
// teacher's in-memory transport pairing in loopback_test.go. It implements
// Client directly so the reconciler and transfer unit can be exercised
// without a live server.
type fakeClient struct {
	mu    sync.Mutex
	dirs  map[string]bool
	files map[string]*fakeFile
	cwd   string

	noOpErr   error
	noOpCalls int
	quitCalls int
	renames   []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		dirs:  map[string]bool{"/": true},
		files: map[string]*fakeFile{},
		cwd:   "/",
	}
}

func (f *fakeClient) putFile(p string, data string, mtime time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureParentDirsLocked(p)
	f.files[p] = &fakeFile{data: []byte(data), modTime: mtime}
}

func (f *fakeClient) ensureParentDirsLocked(p string) {
	dir := path.Dir(p)
	for dir != "/" && dir != "." {
		f.dirs[dir] = true
		dir = path.Dir(dir)
	}
	f.dirs["/"] = true
}

func (f *fakeClient) List(dir string) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dir = normPath(dir)

	seen := map[string]EntryKind{}
	for fp := range f.files {
		if path.Dir(fp) == dir {
			seen[path.Base(fp)] = KindFile
		}
	}
	for d := range f.dirs {
		if d == dir {
			continue
		}
		if path.Dir(d) == dir {
			seen[path.Base(d)] = KindDirectory
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]Entry, 0, len(names))
	for _, n := range names {
		out = append(out, Entry{Name: n, Kind: seen[n]})
	}
	return out, nil
}

func (f *fakeClient) Pwd() (string, error) {
	return "/", nil
}

func (f *fakeClient) Chdir(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = normPath(p)
	if !f.dirs[p] {
		return fmt.Errorf("%w: %s", ErrNotADirectory, p)
	}
	return nil
}

func (f *fakeClient) ChdirParent() error { return nil }

func (f *fakeClient) Mkdir(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = normPath(p)
	if f.dirs[p] {
		return fmt.Errorf("scbox: exists: %s", p)
	}
	f.dirs[p] = true
	return nil
}

func (f *fakeClient) GetModTime(p string) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ff, ok := f.files[normPath(p)]
	if !ok {
		return nil, nil
	}
	t := ff.modTime
	return &t, nil
}

func (f *fakeClient) SetModTime(p string, t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ff, ok := f.files[normPath(p)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	ff.modTime = t
	return nil
}

func (f *fakeClient) Size(p string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ff, ok := f.files[normPath(p)]
	if !ok {
		return 0, false, nil
	}
	return int64(len(ff.data)), true, nil
}

func (f *fakeClient) Retrieve(p string) (io.ReadCloser, error) {
	f.mu.Lock()
	ff, ok := f.files[normPath(p)]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return io.NopCloser(bytes.NewReader(ff.data)), nil
}

func (f *fakeClient) Store(p string, src io.Reader) error {
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p = normPath(p)
	f.ensureParentDirsLocked(p)
	f.files[p] = &fakeFile{data: data}
	return nil
}

func (f *fakeClient) Delete(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = normPath(p)
	if _, ok := f.files[p]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	delete(f.files, p)
	return nil
}

func (f *fakeClient) Rename(oldPath, newPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	oldPath, newPath = normPath(oldPath), normPath(newPath)
	ff, ok := f.files[oldPath]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, oldPath)
	}
	f.renames = append(f.renames, oldPath+"->"+newPath)
	delete(f.files, oldPath)
	f.ensureParentDirsLocked(newPath)
	f.files[newPath] = ff
	return nil
}

func (f *fakeClient) NoOp() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noOpCalls++
	return f.noOpErr
}

func (f *fakeClient) Quit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quitCalls++
	return nil
}

func normPath(p string) string {
	p = path.Clean("/" + strings.TrimPrefix(p, "/"))
	return p
}
