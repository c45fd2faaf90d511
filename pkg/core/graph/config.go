// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Config holds the options used to finalize and run a graph.
type Config struct {
	// NumThreads used by the CPU backend to split kernels. 0 means runtime.NumCPU().
	NumThreads int

	// UseSyntheticType converts the graph to SyntheticType (Uint8 or Int8) with synthetic quantization,
	// used to benchmark quantized execution of a float network.
	UseSyntheticType bool
	SyntheticType    dtypes.DType

	// UseTuner enables kernel tuning on backends that support it, loading/saving TunerFile.
	UseTuner  bool
	TunerFile string

	// MaxDescriptorPasses bounds the descriptor forwarding fixed point. 0 means DefaultMaxDescriptorPasses.
	MaxDescriptorPasses int

	// ParallelBranches runs the sub-workloads of branch functions concurrently.
	ParallelBranches bool

	// UseFunctionMemoryManager lets functions share transient memory through the context's allocator.
	UseFunctionMemoryManager bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		NumThreads:               runtime.NumCPU(),
		SyntheticType:            dtypes.Uint8,
		TunerFile:                "acl_tuner.csv",
		MaxDescriptorPasses:      DefaultMaxDescriptorPasses,
		UseFunctionMemoryManager: true,
	}
}

// NNGRAPH_CONFIG is the environment variable with the configuration string read by ConfigFromEnv.
//
// The format is the one accepted by ParseConfig, e.g. "threads=4,synthetic=int8".
const NNGRAPH_CONFIG = "NNGRAPH_CONFIG"

// ParseConfig parses a comma-separated list of options on top of DefaultConfig.
//
// Options:
//   - "threads=<n>": NumThreads.
//   - "synthetic=<uint8|int8>": enables UseSyntheticType with the given type.
//   - "tuner" or "tuner=<file>": enables UseTuner, optionally setting TunerFile.
//   - "max_descriptor_passes=<n>": MaxDescriptorPasses.
//   - "parallel_branches": ParallelBranches.
//   - "no_function_memory_manager": disables UseFunctionMemoryManager.
func ParseConfig(config string) (Config, error) {
	cfg := DefaultConfig()
	for _, part := range strings.Split(config, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, hasValue := strings.Cut(part, "=")
		var err error
		switch key {
		case "threads":
			cfg.NumThreads, err = strconv.Atoi(value)
		case "synthetic":
			switch strings.ToLower(value) {
			case "uint8", "qasymm8":
				cfg.SyntheticType = dtypes.Uint8
			case "int8", "qasymm8_signed":
				cfg.SyntheticType = dtypes.Int8
			default:
				err = errors.Errorf("unsupported synthetic type %q", value)
			}
			cfg.UseSyntheticType = true
		case "tuner":
			cfg.UseTuner = true
			if hasValue {
				cfg.TunerFile = value
			}
		case "max_descriptor_passes":
			cfg.MaxDescriptorPasses, err = strconv.Atoi(value)
		case "parallel_branches":
			cfg.ParallelBranches = true
		case "no_function_memory_manager":
			cfg.UseFunctionMemoryManager = false
		default:
			return cfg, errors.Errorf("unknown configuration option %q in %q", part, config)
		}
		if err != nil {
			return cfg, errors.WithMessagef(err, "invalid value for option %q", key)
		}
	}
	return cfg, nil
}

// ConfigFromEnv returns ParseConfig of the NNGRAPH_CONFIG environment variable, or DefaultConfig if not set.
func ConfigFromEnv() (Config, error) {
	config, found := os.LookupEnv(NNGRAPH_CONFIG)
	if !found {
		return DefaultConfig(), nil
	}
	return ParseConfig(config)
}

// Threads returns NumThreads, or runtime.NumCPU() if not set.
func (c Config) Threads() int {
	if c.NumThreads <= 0 {
		return runtime.NumCPU()
	}
	return c.NumThreads
}
