// Command delta works with changesets stored in files.
//
//	delta diff A B                  changeset from document A to document B
//	delta apply BASE CHANGE...      apply changesets in order over BASE
//	delta rebase CHANGE OTHER       rebase CHANGE to apply after OTHER
//	delta fingerprint FILE...       print the fingerprint of each file
//	delta fmt FILE                  normalize and re-encode FILE
//
// Input formats are picked by file extension. Results are written to stdout in
// the format given by -o, and a summary of the result is written to stderr when
// it is a terminal. With -schema, a result is only written if it satisfies the
// given expression, for example -schema 'name == "doc" && length < 1000'.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/golang/glog"
	"github.com/mattn/go-isatty"

	"github.com/brunokim/delta/codec"
	"github.com/brunokim/delta/delta"
	"github.com/brunokim/delta/schema"
)

var (
	outFormat = flag.String("o", "json", "output format: json, yaml or proto")
	priority  = flag.Bool("priority", false, "in rebase, whether CHANGE wins ties against OTHER")
	summary   = flag.Bool("summary", false, "always write a summary to stderr, even if it is not a terminal")
	schemaSrc = flag.String("schema", "", "expression that every result must satisfy")
)

var errUsage = errors.New("usage: delta [flags] diff|apply|rebase|fingerprint|fmt FILE...")

func main() {
	flag.Parse()
	defer glog.Flush()

	cmd := &command{
		out:      codecFor(*outFormat),
		priority: *priority,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		summary:  *summary || isatty.IsTerminal(os.Stderr.Fd()),
	}
	if *schemaSrc != "" {
		p, err := schema.Expr(*schemaSrc)
		if err != nil {
			glog.Exitf("-schema: %v", err)
		}
		cmd.schema = p
	}
	if err := cmd.run(flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
		}
		fmt.Fprintln(os.Stderr, err)
		glog.Flush()
		os.Exit(1)
	}
}

func codecFor(name string) codec.Codec {
	c, err := codec.ByName(name)
	if err != nil {
		glog.Exitf("-o: %v", err)
	}
	if c.Name() == "json" {
		return codec.JSON{Indent: "  "}
	}
	return c
}

type command struct {
	out      codec.Codec
	priority bool
	stdout   io.Writer
	stderr   io.Writer
	summary  bool

	// Optional check on results before they are written.
	schema delta.Schema
}

func (c *command) run(args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	name, files := args[0], args[1:]
	glog.V(1).Infof("%s %v", name, files)
	switch {
	case name == "diff" && len(files) == 2:
		return c.diff(files[0], files[1])
	case name == "apply" && len(files) >= 1:
		return c.apply(files[0], files[1:])
	case name == "rebase" && len(files) == 2:
		return c.rebase(files[0], files[1])
	case name == "fingerprint" && len(files) >= 1:
		return c.fingerprint(files)
	case name == "fmt" && len(files) == 1:
		d, err := read(files[0])
		if err != nil {
			return err
		}
		return c.write(d.Done())
	}
	return fmt.Errorf("%w: got %q with %d files", errUsage, name, len(files))
}

func (c *command) diff(aPath, bPath string) error {
	a, err := read(aPath)
	if err != nil {
		return err
	}
	b, err := read(bPath)
	if err != nil {
		return err
	}
	return c.write(delta.Diff(a, b).Done())
}

func (c *command) apply(basePath string, changePaths []string) error {
	base, err := read(basePath)
	if err != nil {
		return err
	}
	for _, path := range changePaths {
		change, err := read(path)
		if err != nil {
			return err
		}
		if err := base.Apply(change.Done()); err != nil {
			return fmt.Errorf("applying %s: %w", path, err)
		}
	}
	return c.write(base.Done())
}

func (c *command) rebase(changePath, otherPath string) error {
	change, err := read(changePath)
	if err != nil {
		return err
	}
	other, err := read(otherPath)
	if err != nil {
		return err
	}
	if err := change.Rebase(other.Done(), c.priority); err != nil {
		return fmt.Errorf("rebasing %s over %s: %w", changePath, otherPath, err)
	}
	return c.write(change.Done())
}

func (c *command) fingerprint(paths []string) error {
	for _, path := range paths {
		d, err := read(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "%s  %s\n", d.Done().Fingerprint(), path)
	}
	return nil
}

func read(path string) (*delta.Delta, error) {
	c, err := codec.ForPath(path)
	if err != nil {
		return nil, err
	}
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := c.Decode(bs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

func (c *command) write(d *delta.Delta) error {
	if c.schema != nil {
		if err := d.WithSchema(c.schema).Validate(); err != nil {
			return err
		}
	}
	bs, err := c.out.Encode(d)
	if err != nil {
		return err
	}
	if _, err := c.stdout.Write(bs); err != nil {
		return err
	}
	if c.out.Name() != "proto" {
		fmt.Fprintln(c.stdout)
	}
	if c.summary {
		c.writeSummary(d)
	}
	return nil
}

// +---------+
// | Summary |
// +---------+

var (
	insertColor = color.New(color.FgGreen)
	deleteColor = color.New(color.FgRed)
	retainColor = color.New(color.FgCyan)
	fpColor     = color.New(color.Faint)
)

// Writes a line such as "+3 -1 =4 ~1 attrs=2 fp=..." counting the units of
// each kind of op.
func (c *command) writeSummary(d *delta.Delta) {
	var ins, del, ret, mod int
	for _, op := range d.Ops() {
		switch op.Kind() {
		case delta.KindText, delta.KindInsert:
			ins += op.Len()
		case delta.KindDelete:
			del += op.Count()
		case delta.KindRetain:
			ret += op.Len()
		case delta.KindModify:
			mod += op.Len()
		}
	}
	fmt.Fprintf(c.stderr, "%s %s %s %s attrs=%d %s\n",
		insertColor.Sprintf("+%d", ins),
		deleteColor.Sprintf("-%d", del),
		retainColor.Sprintf("=%d", ret),
		retainColor.Sprintf("~%d", mod),
		len(d.AttrKeys()),
		fpColor.Sprintf("fp=%s", d.Fingerprint()))
}
