// zcimg is a multi-format image transcoder and inspector built on the
// zencodecs dispatch layer.
package main

import (
	"os"

	"github.com/imazen/zencodecs/cmd/zcimg/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
