package internal

import (
	"fmt"
	"runtime"
)

// Version is the current leafchat release.
const Version = "0.4.0"

// UserAgent identifies the client to the server.
func UserAgent() string {
	return fmt.Sprintf("leafchat/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}
