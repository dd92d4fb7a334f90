package data

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinicius-lino-figueiredo/jedb/domain"
)

func TestParseJSONKeepsFieldOrder(t *testing.T) {
	doc, err := ParseJSON([]byte(`{"z": 1, "a": "two", "m": {"k": [true, null]}}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"z", "a", "m"}, slices.Collect(doc.Keys()))
	assert.Equal(t, domain.Int(1), doc.Get("z"))
	assert.Equal(t, domain.Str("two"), doc.Get("a"))

	k := doc.Get("m").Doc().Get("k").Array()
	require.Len(t, k, 2)
	assert.Equal(t, domain.Bool(true), k[0])
	assert.True(t, k[1].IsNull())
}

func TestParseJSONEmpty(t *testing.T) {
	doc, err := ParseJSON([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 0, doc.Len())

	doc, err = ParseJSON([]byte(`{"a": []}`))
	require.NoError(t, err)
	assert.Equal(t, domain.KindArray, doc.Get("a").Kind())
	assert.Len(t, doc.Get("a").Array(), 0)
}

func TestParseJSONNumbers(t *testing.T) {
	doc, err := ParseJSON([]byte(`{
		"int": 42,
		"neg": -7,
		"zero": -0,
		"max": 9223372036854775807,
		"big": 9223372036854775808,
		"frac": 4.5,
		"exp": 1e3,
		"negexp": 2.5e-2
	}`))
	require.NoError(t, err)

	assert.Equal(t, domain.Int(42), doc.Get("int"))
	assert.Equal(t, domain.Int(-7), doc.Get("neg"))
	assert.Equal(t, domain.Int(0), doc.Get("zero"))
	assert.Equal(t, domain.Int(math.MaxInt64), doc.Get("max"))

	// one past MaxInt64 no longer fits and degrades to a float
	assert.Equal(t, domain.KindFloat, doc.Get("big").Kind())

	assert.Equal(t, domain.Float(4.5), doc.Get("frac"))
	assert.Equal(t, domain.Float(1000), doc.Get("exp"))
	assert.Equal(t, domain.Float(0.025), doc.Get("negexp"))
}

func TestParseJSONStrings(t *testing.T) {
	doc, err := ParseJSON([]byte(`{
		"plain": "hello",
		"escapes": "a\nb\tc\"d\\e/f",
		"unicode": "café",
		"utf8": "héllo",
		"emoji": "😀",
		"lone": "\ud800x"
	}`))
	require.NoError(t, err)

	assert.Equal(t, "hello", doc.Get("plain").Str())
	assert.Equal(t, "a\nb\tc\"d\\e/f", doc.Get("escapes").Str())
	assert.Equal(t, "café", doc.Get("unicode").Str())
	assert.Equal(t, "héllo", doc.Get("utf8").Str())
	assert.Equal(t, "😀", doc.Get("emoji").Str())
	assert.Equal(t, "�x", doc.Get("lone").Str())
}

func TestParseJSONWhitespace(t *testing.T) {
	doc, err := ParseJSON([]byte("\t{\n \"a\" : 1 ,\r\n\"b\" : [ 2 , 3 ] }  "))
	require.NoError(t, err)
	assert.Equal(t, domain.Int(1), doc.Get("a"))
	assert.Len(t, doc.Get("b").Array(), 2)
}

func TestParseJSONInvalid(t *testing.T) {
	cases := []string{
		``,
		`   `,
		`[1]`,
		`"x"`,
		`42`,
		`{`,
		`{"a"}`,
		`{"a":}`,
		`{"a":1,}`,
		`{"a":1} x`,
		`{"a": tru}`,
		`{"a": --1}`,
		`{"a": "unterminated`,
		`{"a": "bad\escape"}`,
		`{"a" 1}`,
		`{"a":1 "b":2}`,
		`{"a": [1 2]}`,
		`{"a": [1,]}`,
		"{\"a\": \"ctrl\x01\"}",
	}
	for _, in := range cases {
		_, err := ParseJSON([]byte(in))
		assert.Error(t, err, "input %q", in)
	}
}

func TestParseJSONValueShapes(t *testing.T) {
	v, err := parseJSONValue([]byte(` [1, "a"] `))
	require.NoError(t, err)
	require.Equal(t, domain.KindArray, v.Kind())
	assert.Equal(t, domain.Str("a"), v.Array()[1])

	v, err = parseJSONValue([]byte(`42`))
	require.NoError(t, err)
	assert.Equal(t, domain.Int(42), v)

	_, err = parseJSONValue([]byte(`1 2`))
	assert.Error(t, err)
}
