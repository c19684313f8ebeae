// Command tabsync keeps a tmux sidebar in sync with the session's windows.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
