package scbox

import "fmt"

// Stats accumulates counters over one driver invocation, updated by the
// transfer unit on both success and failure, and printed once on exit.
type Stats struct {
	FilesDownloaded int
	FilesUploaded   int
	DirsCreated     int
	BytesTransfered int64
	Errors          int
}

func (s *Stats) String() string {
	return fmt.Sprintf(
		"downloaded=%d uploaded=%d dirs_created=%d bytes=%d errors=%d",
		s.FilesDownloaded, s.FilesUploaded, s.DirsCreated, s.BytesTransfered, s.Errors,
	)
}
