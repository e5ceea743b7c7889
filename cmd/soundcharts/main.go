// Command soundcharts queries the Soundcharts API from the command line and
// prints the results as JSON.
//
// Credentials come from ~/.config/soundcharts/config.yaml, ./config.yaml or
// SOUNDCHARTS_APP_ID / SOUNDCHARTS_API_KEY.
//
//	soundcharts followers <artist-uuid> --platform instagram --start 2024-01-01
//	soundcharts streams <song-uuid>
//	soundcharts top-artists --platform spotify --metric followers --max-items 50
package main

import (
	"fmt"
	"os"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
