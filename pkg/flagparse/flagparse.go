package flagparse

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/scanwell-labs/dicomsort/pkg/buildinfo"
)

// cliFlags holds pointers to all possible command-line flags.
// Fields are pointers so we can distinguish between "not registered for this command" (nil)
// and "registered but not set by user" (non-nil pointer to zero value).
type cliFlags struct {
	// Global
	LogLevel *string
	DryRun   *bool
	Metrics  *bool

	// Sort
	Study    *string
	Output   *string
	Mode     *string
	Preserve *bool

	Prefix         *string
	Suffix         *string
	ForbiddenChars *string

	SortWorkers     *int
	DeleteWorkers   *int
	CompressWorkers *int
	BufferSizeKB    *int

	CompressionFormat *string
	CompressionLevel  *string
}

func registerGlobalFlags(fs *flag.FlagSet, f *cliFlags) {
	f.LogLevel = fs.String("log-level", "info", "Set the logging level: 'debug', 'notice', 'info', 'warn', 'error'.")
	f.DryRun = fs.Bool("dry-run", false, "Show what would be done without making any changes.")
	f.Metrics = fs.Bool("metrics", true, "Enable detailed performance and file-counting metrics. Set to false to disable.")
}

func registerSortFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Study = fs.String("study", "", "Study directory to scan for DICOM files. (Required)")
	f.Output = fs.String("output", "", "Destination root for the sorted tree. Defaults to sorting in place under the study directory.")

	f.Mode = fs.String("mode", "", "Relocation mode: 'move' or 'copy'. Defaults to 'move' when sorting in place, 'copy' otherwise.")
	f.Preserve = fs.Bool("preserve", true, "Keep original source folders after sorting. Set to false to delete folders fully emptied by the sort.")

	f.Prefix = fs.String("prefix", "", "String prepended to the subject ID when naming subject directories.")
	f.Suffix = fs.String("suffix", "", "String appended to the subject ID when naming subject directories.")
	f.ForbiddenChars = fs.String("forbidden-chars", ".", "Characters replaced with '_' in series directory names.")

	f.SortWorkers = fs.Int("sort-workers", 0, "Number of worker goroutines for reading and relocating files.")
	f.DeleteWorkers = fs.Int("delete-workers", 0, "Number of worker goroutines for cleaning up emptied folders.")
	f.CompressWorkers = fs.Int("compress-workers", 0, "Number of worker goroutines for compressing surviving folders.")
	f.BufferSizeKB = fs.Int("buffer-size-kb", 0, "Size of the I/O buffer in kilobytes for file copies and compression.")

	f.CompressionFormat = fs.String("compression-format", "", "Compress surviving source folders: 'none', 'zip', 'tar' or 'gzip'.")
	f.CompressionLevel = fs.String("compression-level", "", "Compression level: 'default', 'fastest', 'better', 'best'.")
}

// Parse parses the provided arguments (usually os.Args[1:]) and returns the command and flag map.
func Parse(args []string) (Command, map[string]interface{}, error) {
	// If no arguments provided, print help and exit.
	if len(args) == 0 {
		fs := flag.NewFlagSet("main", flag.ContinueOnError)
		printTopLevelUsage(fs)
		return None, nil, nil
	}

	cmdStr := strings.ToLower(args[0])

	if cmdStr == "help" || cmdStr == "-h" || cmdStr == "-help" || cmdStr == "--help" {
		fs := flag.NewFlagSet("main", flag.ContinueOnError)
		printTopLevelUsage(fs)
		return None, nil, nil
	}

	f := &cliFlags{}

	command, err := ParseCommand(cmdStr)
	if err != nil {
		return None, nil, err
	}

	switch command {
	case Sort:
		fs := flag.NewFlagSet(command.String(), flag.ContinueOnError)
		registerGlobalFlags(fs, f)
		registerSortFlags(fs, f)

		fs.Usage = func() {
			printSubcommandUsage(command, "Sort a study directory into subject and series folders.", fs)
		}

		if err := fs.Parse(args[1:]); err != nil {
			return command, nil, err
		}
		flagMap, err := flagsToMap(fs, f)
		return command, flagMap, err

	case Version:
		return command, nil, nil

	default:
		return None, nil, fmt.Errorf("unknown command: %s", args[0])
	}
}

func flagsToMap(fs *flag.FlagSet, f *cliFlags) (map[string]interface{}, error) {
	// Create a map of the flags that were explicitly set by the user, along with their values.
	// This map is used to selectively override the base configuration.
	usedFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { usedFlags[f.Name] = true })

	flagMap := make(map[string]any)

	addIfUsed(flagMap, usedFlags, "log-level", f.LogLevel)
	addIfUsed(flagMap, usedFlags, "dry-run", f.DryRun)
	addIfUsed(flagMap, usedFlags, "metrics", f.Metrics)

	addIfUsed(flagMap, usedFlags, "study", f.Study)
	addIfUsed(flagMap, usedFlags, "output", f.Output)
	addIfUsed(flagMap, usedFlags, "mode", f.Mode)
	addIfUsed(flagMap, usedFlags, "preserve", f.Preserve)

	addIfUsed(flagMap, usedFlags, "prefix", f.Prefix)
	addIfUsed(flagMap, usedFlags, "suffix", f.Suffix)
	addIfUsed(flagMap, usedFlags, "forbidden-chars", f.ForbiddenChars)

	addIfUsed(flagMap, usedFlags, "sort-workers", f.SortWorkers)
	addIfUsed(flagMap, usedFlags, "delete-workers", f.DeleteWorkers)
	addIfUsed(flagMap, usedFlags, "compress-workers", f.CompressWorkers)
	addIfUsed(flagMap, usedFlags, "buffer-size-kb", f.BufferSizeKB)

	addIfUsed(flagMap, usedFlags, "compression-format", f.CompressionFormat)
	addIfUsed(flagMap, usedFlags, "compression-level", f.CompressionLevel)

	return flagMap, nil
}

// addIfUsed adds the value of ptr to flagMap if ptr is not nil and the flag was set.
func addIfUsed[T any](flagMap map[string]interface{}, usedFlags map[string]bool, name string, ptr *T) {
	if ptr != nil && usedFlags[name] {
		flagMap[name] = *ptr
	}
}

// printTopLevelUsage prints the main help message.
func printTopLevelUsage(fs *flag.FlagSet) {

	execName := filepath.Base(os.Args[0])
	fmt.Fprintf(fs.Output(), "%s(%s) ", buildinfo.Name, buildinfo.Version)
	fmt.Fprintf(fs.Output(), "A fast parallel DICOM study sorter.\n\n")
	fmt.Fprintf(fs.Output(), "Usage: %s <command> [flags]\n\n", execName)
	fmt.Fprintf(fs.Output(), "Commands:\n")
	fmt.Fprintf(fs.Output(), "  sort        Sort a study directory into subject and series folders\n")
	fmt.Fprintf(fs.Output(), "  version     Print the application version\n")
	fmt.Fprintf(fs.Output(), "\nRun '%s <command> -help' for more information on a command.\n", execName)
}

// printSubcommandUsage prints the help message for a specific subcommand.
func printSubcommandUsage(command Command, desc string, fs *flag.FlagSet) {

	execName := filepath.Base(os.Args[0])
	fmt.Fprintf(fs.Output(), "%s(%s) ", buildinfo.Name, buildinfo.Version)
	fmt.Fprintf(fs.Output(), "%s\n\n", desc)
	fmt.Fprintf(fs.Output(), "Usage: %s %s [flags]\n\n", execName, command.String())
	fmt.Fprintf(fs.Output(), "Flags:\n")
	fs.PrintDefaults()
}
