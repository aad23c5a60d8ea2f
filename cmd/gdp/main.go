// cmd/gdp/main.go
package main

import (
	"errors"
	"os"

	"device-programmer/internal/cli"
)

// Set via ldflags at build time.
var version = "dev"

// @title gdp API
// @version 0.1.0
// @description Generic device programmer: tool and part catalog, port discovery and verified target sessions

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8085
// @BasePath /
func main() {
	if err := cli.NewRootCmd(version).Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
