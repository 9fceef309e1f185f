package smartimg_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartfs/tools/internal/smartfs/layout"
	"github.com/smartfs/tools/smartimg"
)

func writeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "etc", "init.d"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "etc", "init.d", "rcS"), []byte("mount -t proc proc /proc\n"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "etc", "passwd"), []byte("root:x:0:0:root:/:/bin/sh\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func runSmartimg(t *testing.T, args ...string) string {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := (smartimg.Context{
		Stdout: &stdout,
		Stderr: &stderr,
		Args:   args,
	}).Execute(context.Background())
	if err != nil {
		t.Fatalf("smartimg %v: %v (stderr: %q)", args, err, stderr.String())
	}
	return stdout.String()
}

func buildArgs(tree, out string) []string {
	return []string{
		"build",
		"--base-dir=" + tree,
		"--out=" + out,
		"--storage-size=1m",
		"--sector-size=1024",
	}
}

func TestBuild(t *testing.T) {
	tree := writeTree(t)
	output := t.TempDir()
	out := filepath.Join(output, "smartfs.img")

	stdout := runSmartimg(t, buildArgs(tree, out)...)

	img, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(img), 1<<20; got != want {
		t.Fatalf("image size = %d, want %d", got, want)
	}

	// The volume header sector is at logical number 0.
	if got, want := string(img[5:9]), "SMRT"; got != want {
		t.Errorf("volume signature = %q, want %q", got, want)
	}
	if got, want := img[9], byte(1); got != want {
		t.Errorf("volume header version = %d, want %d", got, want)
	}
	if got, want := img[10], byte(16); got != want {
		t.Errorf("volume header name length = %d, want %d", got, want)
	}

	cod, err := layout.ForVersion(1)
	if err != nil {
		t.Fatal(err)
	}
	p := layout.Params{SectorSize: 1024, MaxNameLen: 16}
	root, err := cod.DecodeSector(p, img[3*1024:4*1024])
	if err != nil {
		t.Fatalf("decoding the root directory sector: %v", err)
	}
	if got, want := root.Type, layout.TypeDirectory; got != want {
		t.Errorf("root sector type = %v, want %v", got, want)
	}
	entries, err := layout.Entries(cod, p, root.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name != "etc" || !entries[0].Directory {
		t.Errorf("root entries = %+v, want a single etc directory", entries)
	}

	for _, want := range []string{"Wrote", "files:       2", "src:"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout does not contain %q:\n%s", want, stdout)
		}
	}
}

func TestBuildReproducible(t *testing.T) {
	tree := writeTree(t)
	output := t.TempDir()
	first := filepath.Join(output, "first.img")
	second := filepath.Join(output, "second.img")

	runSmartimg(t, buildArgs(tree, first)...)
	runSmartimg(t, buildArgs(tree, second)...)

	a, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(second)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("two builds of the same tree differ")
	}
}

func TestHexCommand(t *testing.T) {
	tree := writeTree(t)
	out := filepath.Join(t.TempDir(), "smartfs.img")
	runSmartimg(t, buildArgs(tree, out)...)

	stdout := runSmartimg(t, "hex", out)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	for _, l := range lines {
		if !strings.HasPrefix(l, ":") {
			t.Fatalf("line %q does not start with ':'", l)
		}
	}
	if got, want := lines[len(lines)-1], ":00000001FF"; !strings.EqualFold(got, want) {
		t.Errorf("last record = %q, want %q", got, want)
	}
}

// The tests below modify flags that persist within the test process (the
// build command's flag variables are package-level), so they run last.

func TestBuildRefusesOverwrite(t *testing.T) {
	tree := writeTree(t)
	out := filepath.Join(t.TempDir(), "smartfs.img")

	runSmartimg(t, buildArgs(tree, out)...)

	err := (smartimg.Context{
		Stdout: new(bytes.Buffer),
		Args:   buildArgs(tree, out),
	}).Execute(context.Background())
	if err == nil {
		t.Fatal("rebuilding over an existing image did not fail")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("error = %q, want mention of already exists", err)
	}

	runSmartimg(t, append(buildArgs(tree, out), "--force")...)
}

func TestBuildHex(t *testing.T) {
	tree := writeTree(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "smartfs.img")
	hexOut := filepath.Join(dir, "smartfs.hex")

	runSmartimg(t, append(buildArgs(tree, out), "--hex="+hexOut, "--hex-base=0x1000")...)

	hex, err := os.ReadFile(hexOut)
	if err != nil {
		t.Fatal(err)
	}
	if len(hex) == 0 || hex[0] != ':' {
		t.Error("hex output does not start with a record mark")
	}
}
