package scbox

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
)

// Op identifies one of the three top-level operations selectable on the CLI.
type Op string

const (
	OpUpload   Op = "u"
	OpDownload Op = "d"
	OpSync     Op = "s"
)

// ValidOps lists the only acceptable positional CLI arguments, in the order
// the usage message should present them.
var ValidOps = []Op{OpUpload, OpDownload, OpSync}

func (op Op) valid() bool {
	for _, v := range ValidOps {
		if v == op {
			return true
		}
	}
	return false
}

// Driver wires the config/options/session/reconciler pipeline together for
// one CLI invocation. It is the Go analogue of spec §4.8's operation driver.
type Driver struct {
	Logger *slog.Logger

	// Dial opens the remote session. Defaults to DialClient; overridable in
	// tests to substitute an in-memory Client.
	Dial func(Config) (Client, error)
}

func (d *Driver) dial() func(Config) (Client, error) {
	if d.Dial != nil {
		return d.Dial
	}
	return DialClient
}

// Run executes op starting from cwd and returns the accumulated statistics.
// The Client is always closed before Run returns, even on error (spec's
// "guaranteed-cleanup scope").
func (d *Driver) Run(ctx context.Context, cwd string, op Op) (*Stats, error) {
	if !op.valid() {
		return nil, ErrInvalidOp
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	root, err := FindProjectRoot(cwd)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(root)
	if err != nil {
		return nil, err
	}
	opts, err := LoadOrSeed(root)
	if err != nil {
		return nil, err
	}
	patterns := opts.EffectivePatterns()

	client, err := d.dial()(cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := client.Quit(); err != nil {
			logger.Warn("session close failed", "error", err)
		}
	}()

	localStart, remoteStart, err := startingPaths(client, root, cwd)
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	st := &State{
		Client:  client,
		Journal: NewJournal(root, logger),
		Stats:   stats,
		Logger:  logger,
	}
	reconnector := NewReconnector(cfg, logger)
	reconnector.dialer = d.dial()
	reconciler := NewReconciler(patterns, reconnector)

	switch op {
	case OpDownload:
		_, err = reconciler.DownloadWalk(ctx, st, client, remoteStart, localStart)
	case OpUpload:
		_, err = reconciler.UploadWalk(ctx, st, client, localStart, remoteStart)
	case OpSync:
		var fresh Client
		fresh, err = reconciler.DownloadWalk(ctx, st, client, remoteStart, localStart)
		if err == nil {
			st.Client = fresh
			_, err = reconciler.UploadWalk(ctx, st, fresh, localStart, remoteStart)
		}
	}

	// The walks may have replaced the session; close the current one.
	if st.Client != nil {
		client = st.Client
	}
	return stats, err
}

// startingPaths derives the local/remote roots the reconciler should begin
// from, per spec §4.6 "Starting point derivation": the remote start is the
// server's working directory joined with CWD's path relative to the project
// root (or just the working directory if CWD is the project root itself).
func startingPaths(client Client, projectRoot, cwd string) (localStart, remoteStart string, err error) {
	rel, err := filepath.Rel(projectRoot, cwd)
	if err != nil {
		return "", "", fmt.Errorf("scbox: relative path from project root: %w", err)
	}

	remoteCwd, err := client.Pwd()
	if err != nil {
		return "", "", wrapConn(err)
	}

	if rel == "." {
		return cwd, remoteCwd, nil
	}
	relSlash := filepath.ToSlash(rel)
	return cwd, joinRemote(remoteCwd, relSlash), nil
}
