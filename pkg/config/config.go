package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/scanwell-labs/dicomsort/pkg/buildinfo"
	"github.com/scanwell-labs/dicomsort/pkg/plog"
	"github.com/scanwell-labs/dicomsort/pkg/util"
)

// NamingConfig controls how subject and series directories are named
// inside the destination tree.
type NamingConfig struct {
	// Prefix is prepended to the subject identifier, e.g. "sub-" for BIDS-style trees.
	Prefix string `json:"prefix"`
	// Suffix is appended to the subject identifier.
	Suffix string `json:"suffix"`
	// ForbiddenChars lists characters replaced with '_' in series directory names.
	ForbiddenChars string `json:"forbiddenChars"`
}

type EnginePerformanceConfig struct {
	SortWorkers     int `json:"sortWorkers"`
	DeleteWorkers   int `json:"deleteWorkers"`
	CompressWorkers int `json:"compressWorkers"`
	BufferSizeKB    int `json:"bufferSizeKB"`
}

type SortEngineConfig struct {
	Metrics     bool                    `json:"metrics"`
	Performance EnginePerformanceConfig `json:"performance"`
}

type CompressionConfig struct {
	Format string `json:"format"`
	Level  string `json:"level"`
}

type RuntimeConfig struct {
	DryRun bool
}

type Config struct {
	Version string `json:"version"`
	// StudyPath is the root directory scanned for DICOM files.
	StudyPath string `json:"study"`
	// OutputPath is the destination root for the sorted tree. Empty means
	// the study directory itself is sorted in place.
	OutputPath string `json:"output"`
	// Mode is the relocation mode: "move" or "copy". Empty means the
	// default is derived from OutputPath (move in place, copy otherwise).
	Mode string `json:"mode"`
	// Preserve keeps the original source folders after sorting. When false,
	// folders fully emptied by the sort are deleted.
	Preserve    bool              `json:"preserve"`
	LogLevel    string            `json:"logLevel"`
	Runtime     RuntimeConfig     `json:"-"` // Never persisted
	Naming      NamingConfig      `json:"naming"`
	Engine      SortEngineConfig  `json:"engine"`
	Compression CompressionConfig `json:"compression"`
}

// NewDefault creates and returns a Config struct with sensible default values.
func NewDefault() Config {
	return Config{
		Version:    buildinfo.Version,
		StudyPath:  "", // Intentionally empty to force user configuration.
		OutputPath: "",
		Mode:       "", // Derived in Validate from OutputPath.
		Preserve:   true,
		LogLevel:   "info",
		Runtime: RuntimeConfig{
			DryRun: false,
		},
		Naming: NamingConfig{
			Prefix:         "",
			Suffix:         "",
			ForbiddenChars: ".", // Series descriptions like "T1.MPRAGE" would otherwise create hidden-ish dotted names.
		},
		Engine: SortEngineConfig{
			Metrics: true, // Default to enabled for detailed performance and file-counting metrics.
			Performance: EnginePerformanceConfig{
				SortWorkers:     runtime.NumCPU(), // Metadata parsing is CPU-bound, relocation is I/O-bound; NumCPU balances both.
				DeleteWorkers:   4,
				CompressWorkers: 1,   // pgzip parallelizes a single archive internally. More workers would oversubscribe.
				BufferSizeKB:    256, // Keep it between 64KB-4MB.
			},
		},
		Compression: CompressionConfig{
			Format: "none",
			Level:  "default",
		},
	}
}

// Validate checks the configuration for logical errors and inconsistencies.
// It cleans and expands paths and derives the relocation mode, so it must be
// called before the config is handed to the engine.
func (c *Config) Validate() error {
	if c.StudyPath == "" {
		return fmt.Errorf("study path cannot be empty")
	}

	var err error
	c.StudyPath, err = util.ExpandPath(c.StudyPath)
	if err != nil {
		return fmt.Errorf("could not expand study path: %w", err)
	}
	c.StudyPath = filepath.Clean(c.StudyPath)

	info, err := os.Stat(c.StudyPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("study path '%s' does not exist", c.StudyPath)
	}
	if err != nil {
		return fmt.Errorf("could not stat study path '%s': %w", c.StudyPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("study path '%s' is not a directory", c.StudyPath)
	}

	if c.OutputPath != "" {
		c.OutputPath, err = util.ExpandPath(c.OutputPath)
		if err != nil {
			return fmt.Errorf("could not expand output path: %w", err)
		}
		c.OutputPath = filepath.Clean(c.OutputPath)
	}

	// Deleting sources while sorting in place would rewrite the only copy of
	// the data and then remove its folders.
	if !c.Preserve && c.OutputPath == "" {
		return fmt.Errorf("preserve=false requires an output path: refusing to delete source folders of an in-place sort")
	}

	// Derive the relocation mode when the user did not pick one.
	if c.Mode == "" {
		if c.OutputPath == "" {
			c.Mode = "move"
		} else {
			c.Mode = "copy"
		}
	}
	switch c.Mode {
	case "move", "copy":
	default:
		return fmt.Errorf("invalid mode: %q. Must be 'move' or 'copy'", c.Mode)
	}

	if c.Engine.Performance.SortWorkers < 1 {
		return fmt.Errorf("engine.performance.sortWorkers must be at least 1")
	}
	if c.Engine.Performance.DeleteWorkers < 1 {
		return fmt.Errorf("engine.performance.deleteWorkers must be at least 1")
	}
	if c.Engine.Performance.CompressWorkers < 1 {
		return fmt.Errorf("engine.performance.compressWorkers must be at least 1")
	}
	if c.Engine.Performance.BufferSizeKB <= 0 {
		return fmt.Errorf("engine.performance.bufferSizeKB must be greater than 0")
	}

	return nil
}

// LogSummary prints a user-friendly summary of the configuration.
func (c *Config) LogSummary() {
	output := c.OutputPath
	if output == "" {
		output = c.StudyPath + " (in place)"
	}
	logArgs := []interface{}{
		"study", c.StudyPath,
		"output", output,
		"mode", c.Mode,
		"preserve", c.Preserve,
		"log_level", c.LogLevel,
		"dry_run", c.Runtime.DryRun,
		"metrics", c.Engine.Metrics,
		"sort_workers", c.Engine.Performance.SortWorkers,
		"delete_workers", c.Engine.Performance.DeleteWorkers,
		"buffer_size_kb", c.Engine.Performance.BufferSizeKB,
	}
	if c.Naming.Prefix != "" {
		logArgs = append(logArgs, "prefix", c.Naming.Prefix)
	}
	if c.Naming.Suffix != "" {
		logArgs = append(logArgs, "suffix", c.Naming.Suffix)
	}
	if c.Compression.Format != "" && c.Compression.Format != "none" {
		compressionSummary := fmt.Sprintf("enabled (f:%s l:%s)", c.Compression.Format, c.Compression.Level)
		logArgs = append(logArgs, "compression", compressionSummary)
		logArgs = append(logArgs, "compress_workers", c.Engine.Performance.CompressWorkers)
	}

	plog.Notice("Active configuration", logArgs...)
}

// MergeConfigWithFlags overlays the configuration values from flags on top of a base
// configuration. It iterates over the setFlags map, which contains only the flags
// explicitly provided by the user on the command line.
func MergeConfigWithFlags(base Config, setFlags map[string]any) Config {
	merged := base

	for name, value := range setFlags {
		switch name {
		case "study":
			merged.StudyPath = value.(string)
		case "output":
			merged.OutputPath = value.(string)
		case "mode":
			merged.Mode = value.(string)
		case "preserve":
			merged.Preserve = value.(bool)
		case "log-level":
			merged.LogLevel = value.(string)
		case "dry-run":
			merged.Runtime.DryRun = value.(bool)
		case "metrics":
			merged.Engine.Metrics = value.(bool)
		case "prefix":
			merged.Naming.Prefix = value.(string)
		case "suffix":
			merged.Naming.Suffix = value.(string)
		case "forbidden-chars":
			merged.Naming.ForbiddenChars = value.(string)
		case "sort-workers":
			merged.Engine.Performance.SortWorkers = value.(int)
		case "delete-workers":
			merged.Engine.Performance.DeleteWorkers = value.(int)
		case "compress-workers":
			merged.Engine.Performance.CompressWorkers = value.(int)
		case "buffer-size-kb":
			merged.Engine.Performance.BufferSizeKB = value.(int)
		case "compression-format":
			merged.Compression.Format = value.(string)
		case "compression-level":
			merged.Compression.Level = value.(string)
		default:
			plog.Debug("unhandled flag in MergeConfigWithFlags", "flag", name)
		}
	}
	return merged
}
