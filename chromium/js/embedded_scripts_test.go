package js

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDocument provides just enough of a DOM for the scripts.
const stubDocument = `
var dispatched = [];
function Event(type, init) {
  this.type = type;
  this.bubbles = !!(init && init.bubbles);
}
function element(props) {
  var el = {
    nodeName: "DIV",
    textContent: "",
    value: "",
    disabled: false,
    readOnly: false,
    focused: false,
    focus: function () { this.focused = true; },
    dispatchEvent: function (e) { dispatched.push(this.nodeName + ":" + e.type); return true; },
    scrollIntoView: function () { this.scrolled = true; },
    getBoundingClientRect: function () { return { left: 10, top: 20, width: 100, height: 40 }; }
  };
  for (var k in props) { el[k] = props[k]; }
  return el;
}
var elements = {
  "h1": element({ nodeName: "H1", textContent: "\n  Herman Melville - Moby-Dick  \n" }),
  "input[name=\"custname\"]": element({ nodeName: "INPUT" }),
  "#ro": element({ nodeName: "INPUT", readOnly: true }),
  "#empty": element({ nodeName: "P", textContent: null })
};
var document = {
  querySelector: function (s) { return elements.hasOwnProperty(s) ? elements[s] : null; },
  body: { scrollWidth: 800, offsetWidth: 790, clientWidth: 780, scrollHeight: 3000, offsetHeight: 10, clientHeight: 10 },
  documentElement: { scrollWidth: 1280, offsetWidth: 0, clientWidth: 0, scrollHeight: 0, offsetHeight: 0, clientHeight: 720 }
};
`

func newRuntime(t *testing.T) *goja.Runtime {
	t.Helper()

	rt := goja.New()
	_, err := rt.RunString(stubDocument)
	require.NoError(t, err)

	return rt
}

func TestScriptsCompile(t *testing.T) {
	t.Parallel()

	for name, s := range map[string]string{
		"query_selector": QuerySelectorScript,
		"text_content":   TextContentScript,
		"fill":           FillScript,
		"element_box":    ElementBoxScript,
		"page_size":      PageSizeScript,
	} {
		_, err := goja.Compile(name, "("+s+")", false)
		assert.NoError(t, err, name)
	}
}

func TestQuerySelector(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t)

	v, err := rt.RunString(Call(QuerySelectorScript, `input[name="custname"]`))
	require.NoError(t, err)
	assert.Equal(t, true, v.Export())

	v, err = rt.RunString(Call(QuerySelectorScript, "#missing"))
	require.NoError(t, err)
	assert.Equal(t, false, v.Export())
}

func TestTextContent(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t)

	v, err := rt.RunString(Call(TextContentScript, "h1"))
	require.NoError(t, err)
	assert.Equal(t, "\n  Herman Melville - Moby-Dick  \n", v.Export())

	v, err = rt.RunString(Call(TextContentScript, "#empty"))
	require.NoError(t, err)
	assert.Equal(t, "", v.Export())

	_, err = rt.RunString(Call(TextContentScript, "#missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no element matches selector #missing")
}

func TestFill(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t)

	v, err := rt.RunString(Call(FillScript, `input[name="custname"]`, `O'Brien "Bob"`))
	require.NoError(t, err)
	assert.Equal(t, true, v.Export())

	value, err := rt.RunString(`elements['input[name="custname"]'].value`)
	require.NoError(t, err)
	assert.Equal(t, `O'Brien "Bob"`, value.Export())

	focused, err := rt.RunString(`elements['input[name="custname"]'].focused`)
	require.NoError(t, err)
	assert.Equal(t, true, focused.Export())

	events, err := rt.RunString(`dispatched.join(",")`)
	require.NoError(t, err)
	assert.Equal(t, "INPUT:input,INPUT:change", events.Export())

	_, err = rt.RunString(Call(FillScript, "h1", "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "element is not an <input>")

	_, err = rt.RunString(Call(FillScript, "#ro", "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "element is not editable")
}

func TestFillThenTextContent(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t)

	for _, sel := range []string{`input[name="custname"]`, "#comments"} {
		_, err := rt.RunString(Call(FillScript, sel, "Ishmael"))
		require.NoError(t, err, sel)

		v, err := rt.RunString(Call(TextContentScript, sel))
		require.NoError(t, err, sel)
		assert.Equal(t, "Ishmael", v.Export(), sel)
	}

	v, err := rt.RunString(Call(TextContentScript, "h1"))
	require.NoError(t, err)
	assert.Equal(t, "\n  Herman Melville - Moby-Dick  \n", v.Export(), "other elements report their text")
}

func TestElementBox(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t)

	v, err := rt.RunString(Call(ElementBoxScript, "h1"))
	require.NoError(t, err)
	box := v.ToObject(rt)
	assert.Equal(t, int64(10), box.Get("x").ToInteger())
	assert.Equal(t, int64(20), box.Get("y").ToInteger())
	assert.Equal(t, int64(100), box.Get("width").ToInteger())
	assert.Equal(t, int64(40), box.Get("height").ToInteger())

	scrolled, err := rt.RunString(`elements.h1.scrolled`)
	require.NoError(t, err)
	assert.Equal(t, true, scrolled.Export())

	v, err = rt.RunString(Call(ElementBoxScript, "#missing"))
	require.NoError(t, err)
	assert.True(t, goja.IsNull(v))
}

func TestPageSize(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t)

	v, err := rt.RunString(Call(PageSizeScript))
	require.NoError(t, err)
	size := v.ToObject(rt)
	assert.Equal(t, int64(1280), size.Get("width").ToInteger())
	assert.Equal(t, int64(3000), size.Get("height").ToInteger())
}

func TestCall(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `(function(){})("a","b\"c")`, Call("function(){}", "a", `b"c`))
	assert.Equal(t, `(function(){})()`, Call("function(){}"))
}
