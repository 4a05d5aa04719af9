package codec_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brunokim/delta/codec"
	"github.com/brunokim/delta/delta"
)

func sample() *delta.Delta {
	return delta.NewNamed("doc").
		SetAttr("title", "notes").
		DeleteAttr("draft", delta.WithPrevValue(true)).
		Insert("hello ", delta.WithAttribution(&delta.Attribution{Insert: []string{"ana"}, InsertAt: 1700000000})).
		Insert("world", delta.WithFormat(delta.Format{"bold": true, "size": 12})).
		InsertItems([]any{1, 2.5, "x", nil, []any{true}, delta.NewNamed("p").Insert("nested").Done()}).
		Retain(3, delta.WithFormat(delta.Format{"italic": nil})).
		Delete(2).
		Modify(delta.NewNamed("p").Retain(1).Insert("!")).
		Done()
}

func TestRoundTrip(t *testing.T) {
	for _, c := range []codec.Codec{codec.JSON{}, codec.JSON{Indent: "  "}, codec.YAML{}, codec.Proto{}} {
		t.Run(c.Name(), func(t *testing.T) {
			d := sample()
			bs, err := c.Encode(d)
			require.NoError(t, err)
			got, err := c.Decode(bs)
			require.NoError(t, err)
			require.Equal(t, d.Fingerprint(), got.Fingerprint(), "decoded %v", got)
			require.True(t, d.Equal(got), "decoded %v", got)
		})
	}
}

func TestYAMLLayout(t *testing.T) {
	bs, err := codec.YAML{}.Encode(delta.New().Insert("ab").Delete(1).Done())
	require.NoError(t, err)
	require.Contains(t, string(bs), "type: delta")
	require.Contains(t, string(bs), "delete: 1")

	got, err := codec.YAML{}.Decode([]byte("type: delta\nchildren:\n- type: insert\n  insert: abc\n- delete: 2\n"))
	require.NoError(t, err)
	require.True(t, delta.New().Insert("abc").Delete(2).Equal(got), "decoded %v", got)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		c    codec.Codec
		data string
	}{
		{codec.JSON{}, `{"type": "delta", "children": 1}`},
		{codec.YAML{}, "children: [\n"},
		{codec.Proto{}, "\xff\xff\xff"},
	}
	for _, test := range tests {
		t.Run(test.c.Name(), func(t *testing.T) {
			_, err := test.c.Decode([]byte(test.data))
			require.ErrorIs(t, err, delta.ErrInvalidJSON)
		})
	}
}

func TestLookup(t *testing.T) {
	for path, want := range map[string]string{
		"a.json":     "json",
		"dir/b.YAML": "yaml",
		"c.yml":      "yaml",
		"d.pb":       "proto",
		"e.binpb":    "proto",
	} {
		c, err := codec.ForPath(path)
		require.NoError(t, err, path)
		require.Equal(t, want, c.Name(), path)
	}
	_, err := codec.ForPath("notes.txt")
	require.True(t, errors.Is(err, codec.ErrUnknownFormat))

	c, err := codec.ByName("YAML")
	require.NoError(t, err)
	require.Equal(t, "yaml", c.Name())
	_, err = codec.ByName("xml")
	require.ErrorIs(t, err, codec.ErrUnknownFormat)
}
