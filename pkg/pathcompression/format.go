package pathcompression

import (
	"encoding/json"
	"fmt"

	"github.com/scanwell-labs/dicomsort/pkg/util"
)

// Format represents the archive format for compressing source folders.
type Format string

const (
	None Format = "none"
	Zip  Format = "zip"
	Tar  Format = "tar"
	Gzip Format = "gzip"
)

var formatToString = map[Format]string{
	None: "none",
	Zip:  "zip",
	Tar:  "tar",
	Gzip: "gzip",
}

var stringToFormat map[string]Format

func init() {
	stringToFormat = util.InvertMap(formatToString)
}

func (f Format) String() string {
	if str, ok := formatToString[f]; ok {
		return str
	}
	return fmt.Sprintf("unknown_compression_format(%s)", string(f))
}

// Ext returns the archive file extension for the format.
func (f Format) Ext() string {
	switch f {
	case Zip:
		return ".zip"
	case Tar:
		return ".tar"
	case Gzip:
		return ".tar.gz"
	default:
		return ""
	}
}

// ParseFormat parses a string into a compression Format.
// It defaults to none if the string is empty.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return None, nil
	}
	if format, ok := stringToFormat[s]; ok {
		return format, nil
	}
	return "", fmt.Errorf("invalid compression format: %q. Must be 'none', 'zip', 'tar', or 'gzip'", s)
}

// MarshalJSON implements the json.Marshaler interface for Format.
func (f Format) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for Format.
func (f *Format) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("compression format should be a string, got %s", data)
	}
	format, err := ParseFormat(s)
	if err != nil {
		return err
	}
	*f = format
	return nil
}
