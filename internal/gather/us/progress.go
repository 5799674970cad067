package us

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

const stateFile = ".gather-state.yaml"

// gatherState records, per end date, which symbols returned no bars and
// whether a run completed. It lets an interrupted or repeated gather resume
// without re-asking for known-empty symbols.
type gatherState struct {
	EndDate       string   `yaml:"end_date"`
	LastCompleted string   `yaml:"last_completed"`
	Symbols       []string `yaml:"symbols,omitempty"`
	Empty         []string `yaml:"empty,omitempty"`

	empty map[string]struct{}
}

// loadGatherState reads the state in dir. A missing file, or an empty dir,
// yields a fresh state.
func loadGatherState(dir string) (*gatherState, error) {
	st := &gatherState{empty: make(map[string]struct{})}
	if dir == "" {
		return st, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, stateFile))
	if os.IsNotExist(err) {
		return st, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", stateFile, err)
	}
	for _, s := range st.Empty {
		st.empty[s] = struct{}{}
	}
	return st, nil
}

// reset starts tracking a new end date.
func (st *gatherState) reset(endDate string) {
	st.EndDate = endDate
	st.Empty = nil
	st.empty = make(map[string]struct{})
}

func (st *gatherState) isEmpty(symbol string) bool {
	_, ok := st.empty[symbol]
	return ok
}

func (st *gatherState) markEmpty(symbol string) {
	if st.isEmpty(symbol) {
		return
	}
	st.empty[symbol] = struct{}{}
	st.Empty = append(st.Empty, symbol)
}

// covers reports whether the completed run included every symbol.
func (st *gatherState) covers(symbols []string) bool {
	done := sortedCopy(st.Symbols)
	for _, s := range symbols {
		if _, found := slices.BinarySearch(done, s); !found {
			return false
		}
	}
	return true
}

// save writes the state atomically; an empty dir is a no-op.
func (st *gatherState) save(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(st)
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, stateFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, stateFile))
}
