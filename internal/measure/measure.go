// Package measure prints progress for build steps that take long enough to
// leave the user wondering.
package measure

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Interactively prints a bracketed status line to w and returns a done
// function that overwrites it with the elapsed wall-clock time, followed by
// fragment (e.g. a byte count).
func Interactively(w io.Writer, status string) (done func(fragment string)) {
	status = "[" + status + "]"
	fmt.Fprint(w, status)
	start := time.Now()
	return func(fragment string) {
		elapsed := time.Since(start)
		fmt.Fprintf(w, "\r[done] in %.2fs%s"+strings.Repeat(" ", len(status))+"\n",
			elapsed.Seconds(),
			fragment)
	}
}
