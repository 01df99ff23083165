package operation

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagebatch/pagebatch/api"
	"github.com/pagebatch/pagebatch/internal/browsertest"
	"github.com/pagebatch/pagebatch/log"
	"github.com/pagebatch/pagebatch/storage"
)

const (
	htmlURL  = "http://httpbin.test/html"
	formsURL = "http://httpbin.test/forms/post"
)

var testPages = map[string]browsertest.Document{ //nolint:gochecknoglobals
	htmlURL: {Elements: map[string]string{
		"h1": "\n    Herman Melville - Moby-Dick\n  ",
	}},
	formsURL: {
		Elements: map[string]string{
			`input[name="custname"]`: "",
			"button":                 "Submit order",
			"#hidden":                "",
		},
		Hidden: map[string]bool{"#hidden": true},
		Fields: map[string]bool{`input[name="custname"]`: true},
	},
}

func loadedPage(t *testing.T, url string) *browsertest.Page {
	t.Helper()

	p := browsertest.NewPage(testPages, []byte("\x89PNG fake"), nil)
	require.NoError(t, p.Goto(context.Background(), url))

	return p
}

func newTestDispatcher(fs afero.Fs) *Dispatcher {
	return NewDispatcher(storage.NewLocalFilePersister(fs), 0, log.NewNullLogger())
}

func TestDispatchNavigate(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(afero.NewMemMapFs())
	res, err := d.Dispatch(context.Background(), Navigate{URL: htmlURL}, loadedPage(t, htmlURL))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"url": htmlURL}, res.Payload)
	assert.Nil(t, res.Attachment)
}

func TestDispatchGetText(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(afero.NewMemMapFs())

	t.Run("trimmed", func(t *testing.T) {
		t.Parallel()

		res, err := d.Dispatch(context.Background(), GetText{URL: htmlURL, Selector: "h1"}, loadedPage(t, htmlURL))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"text": "Herman Melville - Moby-Dick"}, res.Payload)
	})
	t.Run("selector_not_found", func(t *testing.T) {
		t.Parallel()

		_, err := d.Dispatch(context.Background(), GetText{URL: htmlURL, Selector: "#missing"}, loadedPage(t, htmlURL))
		var oe *Error
		require.ErrorAs(t, err, &oe)
		assert.Equal(t, ReasonSelectorNotFound, oe.Reason)
		assert.Equal(t, KindGetText, oe.Kind)
		assert.Equal(t, "#missing", oe.Selector)
		assert.Contains(t, err.Error(), `no element matches selector "#missing"`)
	})
}

func TestDispatchClickElement(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(afero.NewMemMapFs())

	page := loadedPage(t, formsURL)
	res, err := d.Dispatch(context.Background(), ClickElement{URL: formsURL, Selector: "button"}, page)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"clicked": true, "selector": "button"}, res.Payload)
	assert.Equal(t, []string{
		"goto " + formsURL,
		"waitForSelector button",
		"click button",
	}, page.Recorder().Calls())

	_, err = d.Dispatch(context.Background(), ClickElement{URL: formsURL, Selector: "#hidden"}, loadedPage(t, formsURL))
	var oe *Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, ReasonOther, oe.Reason)
}

func TestDispatchFillForm(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(afero.NewMemMapFs())
	page := loadedPage(t, formsURL)
	sel := `input[name="custname"]`

	res, err := d.Dispatch(context.Background(), FillForm{URL: formsURL, Selector: sel, Value: "Ishmael"}, page)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"filled": true, "selector": sel, "value": "Ishmael"}, res.Payload)

	// the filled value is what a later read sees.
	res, err = d.Dispatch(context.Background(), GetText{URL: formsURL, Selector: sel}, page)
	require.NoError(t, err)
	assert.Equal(t, "Ishmael", res.Payload["text"])

	_, err = d.Dispatch(context.Background(), FillForm{URL: formsURL, Selector: "button", Value: "x"}, page)
	var oe *Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, KindFillForm, oe.Kind)
}

func TestDispatchScreenshot(t *testing.T) {
	t.Parallel()

	t.Run("attached", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		page := loadedPage(t, htmlURL)
		res, err := newTestDispatcher(fs).Dispatch(context.Background(), Screenshot{URL: htmlURL}, page)
		require.NoError(t, err)

		assert.Empty(t, res.Payload)
		require.NotNil(t, res.Attachment)
		assert.Equal(t, "screenshot", res.Attachment.Name)
		assert.Equal(t, "image/png", res.Attachment.MimeType)
		assert.Equal(t, "screenshot.png", res.Attachment.FileName)
		assert.Equal(t, []byte("\x89PNG fake"), res.Attachment.Data)
		require.NotNil(t, page.ScreenshotOpts)
		assert.False(t, page.ScreenshotOpts.FullPage)
	})
	t.Run("saved_and_renamed", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		page := loadedPage(t, htmlURL)
		req := Screenshot{URL: htmlURL, FullPage: true, SavePath: "/shots/moby.png", OutputPropertyName: "capture"}
		res, err := newTestDispatcher(fs).Dispatch(context.Background(), req, page)
		require.NoError(t, err)

		assert.Equal(t, "capture", res.Attachment.Name)
		assert.Equal(t, "moby.png", res.Attachment.FileName)
		assert.True(t, page.ScreenshotOpts.FullPage)

		saved, err := afero.ReadFile(fs, "/shots/moby.png")
		require.NoError(t, err)
		assert.Equal(t, res.Attachment.Data, saved)
	})
	t.Run("save_failure", func(t *testing.T) {
		t.Parallel()

		d := NewDispatcher(failingPersister{}, 0, log.NewNullLogger())
		_, err := d.Dispatch(context.Background(), Screenshot{URL: htmlURL, SavePath: "/x.png"}, loadedPage(t, htmlURL))
		var oe *Error
		require.ErrorAs(t, err, &oe)
		assert.Equal(t, ReasonOther, oe.Reason)
		assert.ErrorIs(t, err, errReadOnly)
	})
}

func TestDispatchValidation(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(afero.NewMemMapFs())
	tests := []struct {
		req   Request
		field string
	}{
		{Navigate{}, "url"},
		{Screenshot{}, "url"},
		{GetText{URL: htmlURL}, "selector"},
		{ClickElement{URL: htmlURL}, "selector"},
		{FillForm{URL: htmlURL, Value: "x"}, "selector"},
	}
	for _, tt := range tests {
		_, err := d.Dispatch(context.Background(), tt.req, loadedPage(t, htmlURL))
		require.ErrorIs(t, err, ErrMissingField, "%s", tt.req.Kind())
		assert.Contains(t, err.Error(), tt.field)

		var oe *Error
		require.ErrorAs(t, err, &oe)
		assert.Equal(t, ReasonOther, oe.Reason)
		assert.Equal(t, tt.req.Kind(), oe.Kind)
	}

	assert.NoError(t, FillForm{URL: htmlURL, Selector: "input"}.Validate(), "an empty value clears the field")
}

func TestFailureReason(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ReasonTimeout, failure(KindClickElement, "a", api.ErrTimeout).Reason)
	assert.Equal(t, ReasonTimeout, failure(KindClickElement, "a", context.DeadlineExceeded).Reason)
	assert.Equal(t, ReasonOther, failure(KindClickElement, "a", errors.New("detached")).Reason)
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for _, k := range Kinds() {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("scroll")
	assert.Error(t, err)
}

var errReadOnly = errors.New("read-only filesystem")

type failingPersister struct{}

func (failingPersister) Persist(context.Context, string, io.Reader) error {
	return errReadOnly
}
