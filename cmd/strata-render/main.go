// Command strata-render renders YAML scene files to PNG with the software
// rasterizer.
//
// Usage:
//
//	strata-render render scene.yaml -o scene.png
//	strata-render config --config strata.yaml
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
