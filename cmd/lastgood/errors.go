package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ZebulonRouseFrantzich/lastgood/internal/release"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1 // network, manifest, verification or exhausted window
	exitConfig = 2
)

func exitCode(err error) int {
	var cfgErr *release.InvalidConfigurationError
	if errors.As(err, &cfgErr) {
		return exitConfig
	}
	return exitFailed
}

// printError writes err and its chain of causes, one per line.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %s\n", ownMessage(err))
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		msg := ownMessage(cause)
		if msg == "" {
			continue
		}
		fmt.Fprintf(w, "  caused by: %s\n", msg)
	}
}

// ownMessage strips the wrapped error's text from err's message so each
// layer is printed once.
func ownMessage(err error) string {
	msg := err.Error()
	if inner := errors.Unwrap(err); inner != nil {
		msg = strings.TrimSuffix(msg, ": "+inner.Error())
		if msg == inner.Error() {
			return ""
		}
	}
	return msg
}
