package scbox

import (
	"errors"
	"io"
	"net/textproto"
	"time"

	"github.com/jlaffaye/ftp"
)

// EntryKind classifies a remote listing entry.
type EntryKind int

const (
	KindUnknown EntryKind = iota
	KindFile
	KindDirectory
)

// Entry is a single remote directory listing result. It is derived per
// listing call and never persisted.
type Entry struct {
	Name string
	Kind EntryKind
}

// Client is the capability surface the engine needs from the remote store.
// It is implemented by ftpClient (backed by github.com/jlaffaye/ftp) and by
// fakeClient in tests.
type Client interface {
	List(dir string) ([]Entry, error)
	Pwd() (string, error)
	Chdir(path string) error
	ChdirParent() error
	Mkdir(path string) error
	GetModTime(path string) (*time.Time, error)
	SetModTime(path string, t time.Time) error
	Size(path string) (int64, bool, error)
	Retrieve(path string) (io.ReadCloser, error)
	Store(path string, src io.Reader) error
	Delete(path string) error
	Rename(oldPath, newPath string) error
	NoOp() error
	Quit() error
}

// ftpClient adapts *ftp.ServerConn to Client.
type ftpClient struct {
	conn *ftp.ServerConn
}

// DialClient opens an authenticated FTP session per cfg. The caller owns the
// returned Client and must Quit it exactly once.
func DialClient(cfg Config) (Client, error) {
	conn, err := ftp.Dial(cfg.Server, ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return nil, wrapConn(err)
	}
	if err := conn.Login(cfg.User, cfg.Password); err != nil {
		_ = conn.Quit()
		return nil, wrapConn(err)
	}
	return &ftpClient{conn: conn}, nil
}

func (c *ftpClient) List(dir string) ([]Entry, error) {
	entries, err := c.conn.List(dir)
	if err != nil {
		return nil, wrapConn(err)
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		k := KindUnknown
		switch e.Type {
		case ftp.EntryTypeFile:
			k = KindFile
		case ftp.EntryTypeFolder:
			k = KindDirectory
		}
		out = append(out, Entry{Name: e.Name, Kind: k})
	}
	return out, nil
}

func (c *ftpClient) Pwd() (string, error) {
	return c.conn.CurrentDir()
}

func (c *ftpClient) Chdir(path string) error {
	if err := c.conn.ChangeDir(path); err != nil {
		return err
	}
	return nil
}

func (c *ftpClient) ChdirParent() error {
	return c.conn.ChangeDirToParent()
}

func (c *ftpClient) Mkdir(path string) error {
	return c.conn.MakeDir(path)
}

func (c *ftpClient) GetModTime(path string) (*time.Time, error) {
	t, err := c.conn.GetTime(path)
	if err != nil {
		if isNotFoundResponse(err) {
			return nil, nil
		}
		return nil, wrapConn(err)
	}
	utc := t.UTC()
	return &utc, nil
}

func (c *ftpClient) SetModTime(path string, t time.Time) error {
	return c.conn.SetTime(path, t.UTC())
}

func (c *ftpClient) Size(path string) (int64, bool, error) {
	size, err := c.conn.FileSize(path)
	if err != nil {
		if isNotFoundResponse(err) {
			return 0, false, nil
		}
		return 0, false, wrapConn(err)
	}
	return size, true, nil
}

// isNotFoundResponse reports whether err is a textproto-class FTP response
// indicating the path doesn't exist (550 file unavailable, 450 action not
// taken) rather than a genuine transport failure. Anything else — including
// a dead connection mid-probe — must not be mistaken for "missing".
func isNotFoundResponse(err error) bool {
	var tpErr *textproto.Error
	if !errors.As(err, &tpErr) {
		return false
	}
	switch tpErr.Code {
	case ftp.StatusFileUnavailable, ftp.StatusFileActionIgnored:
		return true
	}
	return false
}

func (c *ftpClient) Retrieve(path string) (io.ReadCloser, error) {
	resp, err := c.conn.Retr(path)
	if err != nil {
		return nil, wrapConn(err)
	}
	return resp, nil
}

func (c *ftpClient) Store(path string, src io.Reader) error {
	if err := c.conn.Stor(path, src); err != nil {
		return wrapConn(err)
	}
	return nil
}

func (c *ftpClient) Delete(path string) error {
	return c.conn.Delete(path)
}

func (c *ftpClient) Rename(oldPath, newPath string) error {
	return c.conn.Rename(oldPath, newPath)
}

func (c *ftpClient) NoOp() error {
	if err := c.conn.NoOp(); err != nil {
		return wrapConn(err)
	}
	return nil
}

func (c *ftpClient) Quit() error {
	return c.conn.Quit()
}

// IsDir probes path by attempting to change into it, per spec §4.3: success
// means directory (and the client returns to the parent before continuing);
// "not a directory" means file.
func IsDir(c Client, path string) (bool, error) {
	if err := c.Chdir(path); err != nil {
		return false, nil
	}
	if err := c.ChdirParent(); err != nil {
		return false, wrapConn(err)
	}
	return true, nil
}
