// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gpu

import (
	"encoding/csv"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Tuner keeps the best observed duration of each kernel, persisted as a CSV file with
// "kernel,nanoseconds" records.
type Tuner struct {
	mu      sync.Mutex
	file    string
	entries map[string]time.Duration
	changed bool
}

// LoadTuner reads the tuner file. A missing file yields an empty tuner.
func LoadTuner(file string) (*Tuner, error) {
	t := &Tuner{file: file, entries: make(map[string]time.Duration)}
	f, err := os.Open(file)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, errors.Wrapf(err, "opening tuner file %q", file)
	}
	defer func() { _ = f.Close() }()
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 2
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "reading tuner file %q", file)
	}
	for _, record := range records {
		ns, err := strconv.ParseInt(record[1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "tuner file %q: invalid duration for kernel %q", file, record[0])
		}
		t.entries[record[0]] = time.Duration(ns)
	}
	klog.V(1).Infof("gpu tuner: loaded %d kernels from %q", len(t.entries), file)
	return t, nil
}

// Observe records a run of kernel, keeping the fastest.
func (t *Tuner) Observe(kernel string, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if best, found := t.entries[kernel]; found && best <= elapsed {
		return
	}
	t.entries[kernel] = elapsed
	t.changed = true
}

// Best returns the fastest observed duration of kernel.
func (t *Tuner) Best(kernel string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, found := t.entries[kernel]
	return d, found
}

// Save writes the tuner file if anything changed since it was loaded.
func (t *Tuner) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.changed {
		return nil
	}
	kernels := make([]string, 0, len(t.entries))
	for kernel := range t.entries {
		kernels = append(kernels, kernel)
	}
	slices.Sort(kernels)
	f, err := os.Create(t.file)
	if err != nil {
		return errors.Wrapf(err, "creating tuner file %q", t.file)
	}
	writer := csv.NewWriter(f)
	for _, kernel := range kernels {
		_ = writer.Write([]string{kernel, strconv.FormatInt(int64(t.entries[kernel]), 10)})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "writing tuner file %q", t.file)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "closing tuner file %q", t.file)
	}
	t.changed = false
	return nil
}
