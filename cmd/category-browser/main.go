// Command category-browser browses catalogue categories page by page, exports
// whole categories and serves browse sessions over HTTP.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
