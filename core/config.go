/*
Copyright (C) 2026  MemCP Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package core

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dc0d/onexit"
	"github.com/docker/go-units"
)

// Config holds every recognized key from spec.md §6. It is written once at
// load (DefaultConfig plus Apply) and read freely thereafter; any runtime mutation must
// route through the trainer/GC boundary (§5), exactly like the teacher's
// global Settings struct in storage/settings.go.
type Config struct {
	EnableComp bool
	EnableDict bool

	DictDir  string
	DictSize int64

	ZstdLevel int

	MinCompSize int64
	MaxCompSize int64

	EnableTraining         bool
	RetrainingIntervalS    int
	MinTrainingSize        int64
	TrainMode              string // "fast" | "optimize"
	TrainingWindowDuration time.Duration

	EWMAAlpha   float64
	RetrainDrop float64

	GCCoolPeriod       time.Duration
	GCQuarantinePeriod time.Duration

	DictRetainMax int
	// DictMemoryBudgetBytes caps total live dictionary bytes across all
	// namespaces; 0 disables the budget (see cachemanager.go's DictBudget).
	DictMemoryBudgetBytes int64

	EnableSampling       bool
	SampleP              float64
	SampleWindowDuration time.Duration
	SpoolDir             string
	SpoolMaxBytes        int64

	AsyncCmdEnabled     bool
	AsyncThreadPoolSize int
	AsyncQueueSize      int
	AsyncBlockOnFull    bool

	// ManifestBackendType selects where the manifest and dictionary files
	// live: "file" (default, DictDir on local disk), "s3", or "ceph". Only
	// one of S3Backend/CephBackend needs to be set, matching whichever type
	// is selected.
	ManifestBackendType string
	S3Backend           *S3ManifestConfig
	CephBackend         *CephManifestConfig

	Verbose bool
}

// DefaultConfig mirrors storage/settings.go's literal-struct defaults.
func DefaultConfig() Config {
	return Config{
		EnableComp:             true,
		EnableDict:             true,
		DictDir:                "data/dict",
		DictSize:               64 * 1024,
		ZstdLevel:              3,
		MinCompSize:            64,
		MaxCompSize:            8 * 1024 * 1024,
		EnableTraining:         true,
		RetrainingIntervalS:    300,
		MinTrainingSize:        1 << 20,
		TrainMode:              "fast",
		TrainingWindowDuration: 10 * time.Minute,
		EWMAAlpha:              0.1,
		RetrainDrop:            0.15,
		GCCoolPeriod:           5 * time.Second,
		GCQuarantinePeriod:     60 * time.Second,
		DictRetainMax:          3,
		DictMemoryBudgetBytes:  256 * 1024 * 1024,
		EnableSampling:         true,
		SampleP:                0.01,
		SampleWindowDuration:   30 * time.Minute,
		SpoolDir:               "",
		SpoolMaxBytes:          16 * 1024 * 1024,
		AsyncCmdEnabled:        false,
		AsyncThreadPoolSize:    4,
		AsyncQueueSize:         1024,
		AsyncBlockOnFull:       false,
		ManifestBackendType:    "file",
		Verbose:                false,
	}
}

// sizeKeys lists the config keys accepted as either a plain integer byte
// count or a human-readable size ("4MiB"); parsed with docker/go-units,
// matching the size-like config conventions of container tooling.
var sizeKeys = map[string]bool{
	"dict_size":          true,
	"min_comp_size":      true,
	"max_comp_size":      true,
	"spool_max_bytes":    true,
	"min_training_size":  true,
	"dict_memory_budget": true,
}

// ParseSize accepts "1234" or "4MiB"/"64KiB" style strings.
func ParseSize(s string) (int64, error) {
	if n, err := units.RAMInBytes(s); err == nil {
		return n, nil
	}
	return 0, fmt.Errorf("%w: invalid size %q", ErrConfig, s)
}

// Apply applies a single recognized key=value pair from an external config
// source (file, admin command, env) onto c, exactly like settings.go's
// ChangeSettings name-dispatch, generalized to spec.md's config table.
func (c *Config) Apply(key, value string) error {
	if sizeKeys[key] {
		n, err := ParseSize(value)
		if err != nil {
			return err
		}
		switch key {
		case "dict_size":
			c.DictSize = n
		case "min_comp_size":
			c.MinCompSize = n
		case "max_comp_size":
			c.MaxCompSize = n
		case "spool_max_bytes":
			c.SpoolMaxBytes = n
		case "min_training_size":
			c.MinTrainingSize = n
		case "dict_memory_budget":
			c.DictMemoryBudgetBytes = n
		}
		return nil
	}
	switch key {
	case "enable_comp":
		c.EnableComp = value == "true"
	case "enable_dict":
		c.EnableDict = value == "true"
	case "dict_dir":
		c.DictDir = value
	case "manifest_backend":
		if value != "file" && value != "s3" && value != "ceph" {
			return fmt.Errorf("%w: manifest_backend must be file, s3 or ceph", ErrConfig)
		}
		c.ManifestBackendType = value
	case "zstd_level":
		var lvl int
		if _, err := fmt.Sscanf(value, "%d", &lvl); err != nil {
			return fmt.Errorf("%w: zstd_level: %v", ErrConfig, err)
		}
		if lvl < 1 || lvl > 22 {
			return fmt.Errorf("%w: zstd_level must be in 1..22", ErrConfig)
		}
		c.ZstdLevel = lvl
	case "enable_training":
		c.EnableTraining = value == "true"
	case "retraining_interval_s":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: retraining_interval_s: %v", ErrConfig, err)
		}
		c.RetrainingIntervalS = n
	case "train_mode":
		if value != "fast" && value != "optimize" {
			return fmt.Errorf("%w: train_mode must be fast or optimize", ErrConfig)
		}
		c.TrainMode = value
	case "training_window_duration":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: training_window_duration: %v", ErrConfig, err)
		}
		c.TrainingWindowDuration = d
	case "ewma_alpha":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: ewma_alpha: %v", ErrConfig, err)
		}
		c.EWMAAlpha = f
	case "retrain_drop":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: retrain_drop: %v", ErrConfig, err)
		}
		c.RetrainDrop = f
	case "gc_cool_period":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: gc_cool_period: %v", ErrConfig, err)
		}
		c.GCCoolPeriod = d
	case "gc_quarantine_period":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: gc_quarantine_period: %v", ErrConfig, err)
		}
		c.GCQuarantinePeriod = d
	case "dict_retain_max":
		var n int
		fmt.Sscanf(value, "%d", &n)
		c.DictRetainMax = n
	case "enable_sampling":
		c.EnableSampling = value == "true"
	case "sample_p":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: sample_p: %v", ErrConfig, err)
		}
		c.SampleP = f
	case "sample_window_duration":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: sample_window_duration: %v", ErrConfig, err)
		}
		c.SampleWindowDuration = d
	case "spool_dir":
		c.SpoolDir = value
	case "async_cmd_enabled":
		c.AsyncCmdEnabled = value == "true"
	case "async_thread_pool_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: async_thread_pool_size: %v", ErrConfig, err)
		}
		c.AsyncThreadPoolSize = n
	case "async_queue_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: async_queue_size: %v", ErrConfig, err)
		}
		c.AsyncQueueSize = n
	case "async_block_on_full":
		c.AsyncBlockOnFull = value == "true"
	case "verbose":
		c.Verbose = value == "true"
	default:
		return fmt.Errorf("%w: unknown setting %q", ErrConfig, key)
	}
	return nil
}

// RegisterShutdownHooks wires the onexit package exactly as settings.go's
// InitSettings does for its trace file, so background state (trainer, GC,
// pool) gets a chance to flush/stop on process exit.
func RegisterShutdownHooks(stop func()) {
	onexit.Register(stop)
}
