package queue

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataKeepsInsertionOrder(t *testing.T) {
	d := NewData()
	d.Set("zeta", 1).Set("alpha", "a").Set("mid", true)
	d.Set("zeta", 2)

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, d.Keys())

	raw, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"zeta":2,"alpha":"a","mid":true}`, string(raw))
	assert.Equal(t, `{"zeta":2,"alpha":"a","mid":true}`, string(raw))
}

func TestDataUnmarshalKeepsKeyOrder(t *testing.T) {
	var d Data
	require.NoError(t, d.UnmarshalJSON([]byte(`{"b":1,"a":{"x":[1,2]},"c":null}`)))

	assert.Equal(t, []string{"b", "a", "c"}, d.Keys())
	n, ok := d.Int("b")
	assert.True(t, ok)
	assert.Equal(t, 1, n)

	nested, ok := d.Get("a")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"x": []any{json.Number("1"), json.Number("2")}}, nested)

	assert.True(t, d.Has("c"))
}

func TestDataKeepsLargeIntegers(t *testing.T) {
	var d Data
	require.NoError(t, d.UnmarshalJSON([]byte(`{"id":9007199254740993,"ratio":0.25,"whole":4.0}`)))

	id, ok := d.Int("id")
	require.True(t, ok)
	assert.Equal(t, 9007199254740993, id)

	f, ok := d.Float("ratio")
	require.True(t, ok)
	assert.Equal(t, 0.25, f)

	whole, ok := d.Int("whole")
	require.True(t, ok)
	assert.Equal(t, 4, whole)
	_, ok = d.Int("ratio")
	assert.False(t, ok)

	raw, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"id":9007199254740993,"ratio":0.25,"whole":4.0}`, string(raw))
}

func TestDataUnmarshalRejectsNonObject(t *testing.T) {
	var d Data
	assert.Error(t, d.UnmarshalJSON([]byte(`[1,2]`)))
	assert.Error(t, d.UnmarshalJSON([]byte(`"x"`)))
}

func TestDataTypedAccessors(t *testing.T) {
	d := NewData()
	d.Set("s", "text").Set("f", 2.5).Set("i", float64(7)).Set("b", false).Set("n", 3)

	s, ok := d.String("s")
	assert.True(t, ok)
	assert.Equal(t, "text", s)

	_, ok = d.String("i")
	assert.False(t, ok)

	_, ok = d.Int("f")
	assert.False(t, ok, "fractional numbers are not ints")

	i, ok := d.Int("i")
	assert.True(t, ok)
	assert.Equal(t, 7, i)

	f, ok := d.Float("n")
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)

	b, ok := d.Bool("b")
	assert.True(t, ok)
	assert.False(t, b)

	_, ok = d.Int("missing")
	assert.False(t, ok)
}

func TestDataDeleteReplaceClone(t *testing.T) {
	d := NewData()
	d.Set("a", 1).Set("b", 2).Set("c", 3)
	d.Delete("b")
	d.Delete("missing")
	assert.Equal(t, []string{"a", "c"}, d.Keys())

	c := d.Clone()
	c.Set("d", 4)
	assert.Equal(t, 2, d.Len())
	assert.Equal(t, 3, c.Len())

	d.Replace(NewData().Set("x", 2).Set("y", 1))
	assert.Equal(t, []string{"x", "y"}, d.Keys())
	assert.Equal(t, map[string]any{"x": 2, "y": 1}, d.Map())

	d.Replace(nil)
	assert.Zero(t, d.Len())
}

func TestZeroDataIsUsable(t *testing.T) {
	var d Data
	d.Set("k", "v")
	raw, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"k":"v"}`, string(raw))
}

func TestDataMarshalUnsupportedValue(t *testing.T) {
	d := NewData()
	d.Set("ch", make(chan int))

	_, err := d.MarshalJSON()
	assert.Error(t, err)
}
