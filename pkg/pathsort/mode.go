package pathsort

import (
	"fmt"

	"github.com/scanwell-labs/dicomsort/pkg/util"
)

// Mode determines how a file reaches its destination.
type Mode int

const (
	// ModeMove renames the file into the destination tree, falling back to
	// copy-and-delete across filesystems.
	ModeMove Mode = iota
	// ModeCopy leaves the source file untouched and writes a copy.
	ModeCopy
)

var modeToString = map[Mode]string{
	ModeMove: "move",
	ModeCopy: "copy",
}

var stringToMode map[string]Mode

func init() {
	stringToMode = util.InvertMap(modeToString)
}

func (m Mode) String() string {
	if str, ok := modeToString[m]; ok {
		return str
	}
	return fmt.Sprintf("unknown_mode(%d)", m)
}

func ParseMode(s string) (Mode, error) {
	if mode, ok := stringToMode[s]; ok {
		return mode, nil
	}
	return ModeMove, fmt.Errorf("invalid mode: %q. Must be 'move' or 'copy'", s)
}
