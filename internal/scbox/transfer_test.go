package scbox

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestState(t *testing.T, client Client) *State {
	t.Helper()
	return &State{
		Client:  client,
		Journal: NewJournal(t.TempDir(), nil),
		Stats:   &Stats{},
	}
}

func TestGetDownloadsAndVerifiesSize(t *testing.T) {
	local := t.TempDir()
	client := newFakeClient()
	mtime := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	client.putFile("/x/big.bin", "0123456789", mtime)

	st := newTestState(t, client)
	if err := Get(st, "/x", local, "big.bin"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(local, "big.bin"))
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != "0123456789" {
		t.Errorf("unexpected content: %q", data)
	}
	info, err := os.Stat(filepath.Join(local, "big.bin"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if diff := info.ModTime().UTC().Sub(mtime); diff < -2*time.Second || diff > 2*time.Second {
		t.Errorf("mtime not propagated within tolerance: local=%v remote=%v", info.ModTime().UTC(), mtime)
	}
	if st.Stats.FilesDownloaded != 1 {
		t.Errorf("expected 1 file downloaded, got %d", st.Stats.FilesDownloaded)
	}
	if st.DownloadCount != 1 {
		t.Errorf("expected download counter 1, got %d", st.DownloadCount)
	}

	if _, err := os.Stat(filepath.Join(local, "big.bin.tmp")); !os.IsNotExist(err) {
		t.Errorf("expected temp file to be gone after rename")
	}
}

func TestGetIntegrityMismatchCleansUpTempFile(t *testing.T) {
	local := t.TempDir()
	client := &sizeMismatchClient{fakeClient: newFakeClient()}
	client.putFile("/a.txt", "hello", time.Now().UTC())

	st := newTestState(t, client)
	err := Get(st, "/", local, "a.txt")
	if err == nil {
		t.Fatal("expected integrity error")
	}
	if _, statErr := os.Stat(filepath.Join(local, "a.txt.tmp")); !os.IsNotExist(statErr) {
		t.Errorf("temp file should have been removed after integrity failure")
	}
	if _, statErr := os.Stat(filepath.Join(local, "a.txt")); !os.IsNotExist(statErr) {
		t.Errorf("destination should not exist after integrity failure")
	}
}

// sizeMismatchClient reports a remote size larger than the real payload, to
// exercise the integrity-check failure path (spec §4.5 step 5 / P3).
type sizeMismatchClient struct{ *fakeClient }

func (s *sizeMismatchClient) Size(p string) (int64, bool, error) {
	size, ok, err := s.fakeClient.Size(p)
	if !ok {
		return 0, false, err
	}
	return size + 1000, true, nil
}

func TestPutUploadsAndSetsRemoteTime(t *testing.T) {
	local := t.TempDir()
	client := newFakeClient()
	mtime := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	if err := os.WriteFile(filepath.Join(local, "hello.txt"), []byte("HI"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(filepath.Join(local, "hello.txt"), mtime, mtime); err != nil {
		t.Fatal(err)
	}

	st := newTestState(t, client)
	if err := Put(st, local, "/a", "hello.txt"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	data, err := client.Retrieve("/a/hello.txt")
	if err != nil {
		t.Fatalf("Retrieve after Put: %v", err)
	}
	buf := make([]byte, 2)
	if _, err := data.Read(buf); err != nil {
		t.Fatalf("read uploaded content: %v", err)
	}
	if string(buf) != "HI" {
		t.Errorf("unexpected remote content: %q", buf)
	}

	remoteTime, err := client.GetModTime("/a/hello.txt")
	if err != nil || remoteTime == nil {
		t.Fatalf("GetModTime: %v", err)
	}
	if diff := remoteTime.Sub(mtime); diff < -2*time.Second || diff > 2*time.Second {
		t.Errorf("remote mtime not set: got %v want ~%v", remoteTime, mtime)
	}
	if st.Stats.FilesUploaded != 1 {
		t.Errorf("expected 1 file uploaded, got %d", st.Stats.FilesUploaded)
	}
}

func TestPutMissingLocalFileFails(t *testing.T) {
	local := t.TempDir()
	client := newFakeClient()
	st := newTestState(t, client)
	if err := Put(st, local, "/a", "missing.txt"); err == nil {
		t.Fatal("expected error for missing local file")
	}
	if st.Stats.Errors != 1 {
		t.Errorf("expected error counted, got %d", st.Stats.Errors)
	}
}
