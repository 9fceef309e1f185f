// Binary smartimg is the top-level CLI entry point for building SmartFS
// filesystem images from a directory tree and converting them for flashing
// tools.
package main

import (
	"context"
	"log"
	"os"

	"github.com/smartfs/tools/smartimg"
)

func main() {
	if err := (smartimg.Context{Args: os.Args[1:]}).Execute(context.Background()); err != nil {
		log.Fatal(err)
	}
}
