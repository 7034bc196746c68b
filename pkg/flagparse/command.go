package flagparse

import (
	"fmt"

	"github.com/scanwell-labs/dicomsort/pkg/util"
)

// Command defines the command to execute.
type Command int

const (
	None Command = iota
	Sort
	Version
)

var commandToString = map[Command]string{
	None:    "none",
	Sort:    "sort",
	Version: "version",
}

var stringToCommand map[string]Command

func init() {
	stringToCommand = util.InvertMap(commandToString)
}

func (c Command) String() string {
	if str, ok := commandToString[c]; ok {
		return str
	}
	return fmt.Sprintf("unknown_command(%d)", c)
}

func ParseCommand(s string) (Command, error) {
	if command, ok := stringToCommand[s]; ok {
		return command, nil
	}
	return None, fmt.Errorf("invalid command: %q. Must be 'sort' or 'version'", s)
}
