package scbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const optionsFileName = "scb.options"

// alwaysIgnored are effectively ignored during tree traversal regardless of
// what the user configured — scb.log is the journal, scb.config and
// scb.options are the tool's own state.
var alwaysIgnored = []string{"scb.log", "scb.config", "scb.options"}

// Options holds the ordered ignore-pattern list loaded from scb.options.
type Options struct {
	IgnoreList []string `json:"ignore_list"`
}

// LoadOrSeed loads scb.options from projectRoot, creating it (seeded with the
// always-ignored triple) if it does not exist yet.
func LoadOrSeed(projectRoot string) (Options, error) {
	path := filepath.Join(projectRoot, optionsFileName)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		opts := Options{IgnoreList: append([]string(nil), alwaysIgnored...)}
		if werr := writeOptions(path, opts); werr != nil {
			return Options{}, werr
		}
		return opts, nil
	}
	if err != nil {
		return Options{}, fmt.Errorf("%w: %v", ErrOptionsInvalid, err)
	}
	var opts Options
	if err := json.Unmarshal(raw, &opts); err != nil {
		return Options{}, fmt.Errorf("%w: %v", ErrOptionsInvalid, err)
	}
	return opts, nil
}

func writeOptions(path string, opts Options) error {
	raw, err := json.MarshalIndent(opts, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// EffectivePatterns returns the user's ignore patterns plus the always-ignored
// triple, deduplicated.
func (o Options) EffectivePatterns() []string {
	seen := make(map[string]bool, len(o.IgnoreList)+len(alwaysIgnored))
	out := make([]string, 0, len(o.IgnoreList)+len(alwaysIgnored))
	for _, p := range append(append([]string(nil), o.IgnoreList...), alwaysIgnored...) {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
