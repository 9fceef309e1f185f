// mksmartimg creates a SmartFS partition image from a directory, keeping the
// flag interface that predates the smartimg CLI.
package main

import "github.com/smartfs/tools/internal/oldmkimg"

func main() {
	oldmkimg.Main()
}
