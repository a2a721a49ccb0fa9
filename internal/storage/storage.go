package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/denizaktas/beautyharvest/internal/runner"
)

// ResultStore is a file-backed sink for one-shot CLI runs: every accepted
// record lands in a single JSON document keyed by product URL.
type ResultStore struct {
	mu       sync.RWMutex
	results  map[string]runner.Result
	filename string
}

func NewResultStore(filename string) (*ResultStore, error) {
	rs := &ResultStore{
		results:  make(map[string]runner.Result),
		filename: filename,
	}

	if err := rs.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return rs, nil
}

// Record implements the runner sink contract. Rejected records are skipped.
func (rs *ResultStore) Record(_ context.Context, _ string, res runner.Result) error {
	if !res.Report.Acceptable() {
		return nil
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.results[res.Fields.URL] = res
	return rs.save()
}

// Get returns the stored result for a product URL.
func (rs *ResultStore) Get(url string) (runner.Result, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	res, ok := rs.results[url]
	return res, ok
}

// Len reports how many records are stored.
func (rs *ResultStore) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.results)
}

// All returns every stored result. The slice is a copy; callers may keep it.
func (rs *ResultStore) All() []runner.Result {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	out := make([]runner.Result, 0, len(rs.results))
	for _, res := range rs.results {
		out = append(out, res)
	}
	return out
}

func (rs *ResultStore) load() error {
	data, err := os.ReadFile(rs.filename)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, &rs.results); err != nil {
		return fmt.Errorf("failed to parse result store %s: %w", rs.filename, err)
	}
	return nil
}

// save assumes the caller holds the write lock.
func (rs *ResultStore) save() error {
	data, err := json.MarshalIndent(rs.results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	tmp := rs.filename + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write result store: %w", err)
	}
	if err := os.Rename(tmp, rs.filename); err != nil {
		return fmt.Errorf("failed to replace result store: %w", err)
	}
	return nil
}
