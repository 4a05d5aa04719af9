package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/brunokim/delta/codec"
	"github.com/brunokim/delta/delta"
	"github.com/brunokim/delta/schema"
)

func writeFile(t *testing.T, dir, name string, d *delta.Delta) string {
	t.Helper()
	path := filepath.Join(dir, name)
	c, err := codec.ForPath(path)
	require.NoError(t, err)
	bs, err := c.Encode(d.Done())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, bs, 0o644))
	return path
}

func newCommand(out codec.Codec) (*command, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return &command{out: out, stdout: &stdout, stderr: &stderr}, &stdout, &stderr
}

func decode(t *testing.T, bs []byte) *delta.Delta {
	t.Helper()
	d, err := delta.Unmarshal(bs)
	require.NoError(t, err)
	return d
}

func TestDiffThenApply(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", delta.New().Insert("hello world"))
	b := writeFile(t, dir, "b.yaml", delta.New().Insert("hello ").Insert("there", delta.WithFormat(delta.Format{"bold": true})))

	cmd, stdout, _ := newCommand(codec.JSON{})
	require.NoError(t, cmd.run([]string{"diff", a, b}))
	change := writeFile(t, dir, "change.pb", decode(t, stdout.Bytes()))

	cmd, stdout, _ = newCommand(codec.JSON{})
	require.NoError(t, cmd.run([]string{"apply", a, change}))
	got := decode(t, stdout.Bytes())
	want := delta.New().Insert("hello ").Insert("there", delta.WithFormat(delta.Format{"bold": true})).Done()
	require.Equal(t, want.Fingerprint(), got.Fingerprint(), "got %v", got)
}

func TestApplyMany(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.json", delta.New().Insert("abc"))
	c1 := writeFile(t, dir, "c1.json", delta.New().Retain(1).Delete(1))
	c2 := writeFile(t, dir, "c2.yml", delta.New().Retain(2).Insert("d"))

	cmd, stdout, _ := newCommand(codec.YAML{})
	require.NoError(t, cmd.run([]string{"apply", base, c1, c2}))
	got, err := codec.YAML{}.Decode(stdout.Bytes())
	require.NoError(t, err)
	require.True(t, delta.New().Insert("acd").Equal(got), "got %v", got)
}

func TestApplyError(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.json", delta.New().Insert("abc"))
	bad := writeFile(t, dir, "bad.json", delta.New().Modify(delta.New().Insert("x")))

	cmd, _, _ := newCommand(codec.JSON{})
	err := cmd.run([]string{"apply", base, bad})
	require.ErrorIs(t, err, delta.ErrUnexpectedCase)
}

func TestRebase(t *testing.T) {
	dir := t.TempDir()
	change := writeFile(t, dir, "change.json", delta.New().Retain(1).Insert("X"))
	other := writeFile(t, dir, "other.json", delta.New().Retain(1).Insert("Y"))

	for _, test := range []struct {
		priority bool
		want     *delta.Delta
	}{
		{false, delta.New().Retain(2).Insert("X")},
		{true, delta.New().Retain(1).Insert("X")},
	} {
		t.Run(fmt.Sprint(test.priority), func(t *testing.T) {
			cmd, stdout, _ := newCommand(codec.JSON{})
			cmd.priority = test.priority
			require.NoError(t, cmd.run([]string{"rebase", change, other}))
			got := decode(t, stdout.Bytes())
			require.True(t, test.want.Equal(got), "got %v", got)
		})
	}
}

func TestFingerprintAndFmt(t *testing.T) {
	dir := t.TempDir()
	d := delta.NewNamed("p").SetAttr("k", "v").Insert("ab").Done()
	path := writeFile(t, dir, "d.yaml", d)

	cmd, stdout, _ := newCommand(codec.JSON{})
	require.NoError(t, cmd.run([]string{"fingerprint", path}))
	require.Equal(t, d.Fingerprint()+"  "+path+"\n", stdout.String())

	cmd, stdout, _ = newCommand(codec.JSON{})
	require.NoError(t, cmd.run([]string{"fmt", path}))
	require.True(t, d.Equal(decode(t, stdout.Bytes())))
}

func TestSummary(t *testing.T) {
	defer func(noColor bool) { color.NoColor = noColor }(color.NoColor)
	color.NoColor = true

	dir := t.TempDir()
	d := delta.New().Insert("ab").Retain(2, delta.WithFormat(delta.Format{"bold": true})).Delete(3).Modify(delta.New().Insert("x")).Done()
	path := writeFile(t, dir, "d.json", d)

	cmd, _, stderr := newCommand(codec.JSON{})
	cmd.summary = true
	require.NoError(t, cmd.run([]string{"fmt", path}))
	require.Equal(t, "+2 -3 =2 ~1 attrs=0 fp="+d.Fingerprint()+"\n", stderr.String())
}

func TestSchema(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.json", delta.New().Insert("a"))
	change := writeFile(t, dir, "change.json", delta.New().Retain(1).Insert("bc"))

	cmd, stdout, _ := newCommand(codec.JSON{})
	cmd.schema = schema.MustExpr(`length < 2`)
	err := cmd.run([]string{"apply", base, change})
	require.ErrorIs(t, err, delta.ErrSchemaRejected)
	require.ErrorIs(t, err, schema.ErrMismatch)
	require.Empty(t, stdout.String())

	cmd, stdout, _ = newCommand(codec.JSON{})
	cmd.schema = schema.MustExpr(`length == 3`)
	require.NoError(t, cmd.run([]string{"apply", base, change}))
	require.True(t, delta.New().Insert("abc").Equal(decode(t, stdout.Bytes())))
}

func TestUsage(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"diff", "a.json"},
		{"rebase", "a.json", "b.json", "c.json"},
		{"fmt"},
		{"merge", "a.json"},
	} {
		cmd, _, _ := newCommand(codec.JSON{})
		require.ErrorIs(t, cmd.run(args), errUsage, "%q", args)
	}

	cmd, _, _ := newCommand(codec.JSON{})
	require.ErrorIs(t, cmd.run([]string{"fmt", "notes.txt"}), codec.ErrUnknownFormat)
}
