package asar

import (
	"os"
	"strconv"
)

// NoArchiveEnv is the environment variable that turns on no-archive mode.
const NoArchiveEnv = "ASAR_NO_ARCHIVE"

// NoArchiveFromEnv reports whether ASAR_NO_ARCHIVE requests no-archive mode.
// Any non-empty value other than a false boolean ("0", "false") counts.
func NoArchiveFromEnv() bool {
	v, ok := os.LookupEnv(NoArchiveEnv)
	if !ok || v == "" {
		return false
	}
	on, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return on
}
