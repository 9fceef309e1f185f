// Package smartimg allows running the smartimg CLI from Go code
// programmatically, to build image creation pipelines on top of SmartFS
// easily.
package smartimg

import (
	"context"
	"io"

	"github.com/smartfs/tools/internal/smartimg"
)

type Context struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Args   []string
}

func (c Context) Execute(ctx context.Context) error {
	root := smartimg.RootCmd()
	if r := c.Stdin; r != nil {
		root.SetIn(r)
	}
	if w := c.Stdout; w != nil {
		root.SetOut(w)
	}
	if w := c.Stderr; w != nil {
		root.SetErr(w)
	}
	if args := c.Args; args != nil {
		root.SetArgs(args)
	}
	root.SetContext(ctx)
	return root.Execute()
}
