// Command archetype is the CLI front-end over the archetype script
// interpreter: archetype generate|validate|variations.
package main

import (
	"os"

	"github.com/archetype-run/archetype/cmd/archetype/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args[1:]))
}
