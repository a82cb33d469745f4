package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElementStyle(t *testing.T) {
	d := NewDocument()
	added, err := d.AppendHTML(nil, `<div class="card" style="color: red; ANIMATION: none">x</div>`)
	require.NoError(t, err)
	el := added[0]

	assert.Equal(t, "red", el.Style("color"))
	assert.Equal(t, "none", el.Style("animation"))

	el.SetStyle("animation", "fadeIn 0.3s ease-out")
	el.SetStyle("opacity", "1")

	assert.Equal(t, "color: red; animation: fadeIn 0.3s ease-out; opacity: 1;", el.Attr("style"))
	assert.Equal(t, "fadeIn 0.3s ease-out", el.Style("animation"))
	assert.Equal(t, "", el.Style("margin"))
}

func TestElementClasses(t *testing.T) {
	d := NewDocument()
	added, err := d.AppendHTML(nil, `<section class="a  b"></section>`)
	require.NoError(t, err)
	el := added[0]

	assert.Equal(t, []string{"a", "b"}, el.Classes())
	assert.True(t, el.HasAnyClass("z", "b"))
	assert.False(t, el.HasClass("c"))

	el.AddClass("c", "a", "")
	assert.Equal(t, "a b c", el.Attr("class"))
}
