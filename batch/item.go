package batch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/guregu/null.v3"
	"gopkg.in/yaml.v3"

	"github.com/pagebatch/pagebatch/api"
	"github.com/pagebatch/pagebatch/operation"
	"github.com/pagebatch/pagebatch/session"
)

// BrowserOptions are the launch options of an item.
type BrowserOptions struct {
	Headless null.Bool `json:"headless"`
	SlowMo   null.Int  `json:"slowMo"`
}

// ScreenshotOptions are the capture options of a takeScreenshot item.
type ScreenshotOptions struct {
	FullPage null.Bool   `json:"fullPage"`
	Path     null.String `json:"path"`
}

// Item is one unit of work of a batch.
type Item struct {
	Operation         string            `json:"operation"`
	URL               string            `json:"url"`
	Selector          null.String       `json:"selector"`
	Value             null.String       `json:"value"`
	DataPropertyName  null.String       `json:"dataPropertyName"`
	Browser           null.String       `json:"browser"`
	BrowserOptions    BrowserOptions    `json:"browserOptions"`
	ScreenshotOptions ScreenshotOptions `json:"screenshotOptions"`
}

// EngineName is the engine the item asks for, as given.
func (it Item) EngineName() string {
	if it.Browser.ValueOrZero() == "" {
		return api.DefaultEngine.String()
	}
	return it.Browser.String
}

// Engine returns the engine type of the item.
func (it Item) Engine() (api.EngineType, error) {
	return api.ParseEngineType(it.EngineName())
}

// LaunchConfig returns the launch configuration of the item, without an
// executable path. Headless unless told otherwise.
func (it Item) LaunchConfig() session.LaunchConfig {
	cfg := session.DefaultLaunchConfig()
	if it.BrowserOptions.Headless.Valid {
		cfg.Headless = it.BrowserOptions.Headless.Bool
	}
	cfg.SlowMoMs = it.BrowserOptions.SlowMo.ValueOrZero()
	return cfg
}

// Request returns the validated operation request of the item.
func (it Item) Request() (operation.Request, error) {
	kind, err := operation.ParseKind(it.Operation)
	if err != nil {
		return nil, &operation.Error{Kind: operation.Kind(it.Operation), Reason: operation.ReasonOther, Err: err}
	}

	var req operation.Request
	switch kind {
	case operation.KindNavigate:
		req = operation.Navigate{URL: it.URL}
	case operation.KindScreenshot:
		req = operation.Screenshot{
			URL:                it.URL,
			FullPage:           it.ScreenshotOptions.FullPage.ValueOrZero(),
			SavePath:           it.ScreenshotOptions.Path.ValueOrZero(),
			OutputPropertyName: it.DataPropertyName.ValueOrZero(),
		}
	case operation.KindGetText:
		req = operation.GetText{URL: it.URL, Selector: it.Selector.ValueOrZero()}
	case operation.KindClickElement:
		req = operation.ClickElement{URL: it.URL, Selector: it.Selector.ValueOrZero()}
	case operation.KindFillForm:
		req = operation.FillForm{URL: it.URL, Selector: it.Selector.ValueOrZero(), Value: it.Value.ValueOrZero()}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	return req, nil
}

// DecodeJSON decodes a JSON array of items.
func DecodeJSON(r io.Reader) ([]Item, error) {
	var items []Item
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("decoding items: %w", err)
	}
	return items, nil
}

// DecodeYAML decodes a YAML sequence of items. Fields follow the JSON names.
func DecodeYAML(r io.Reader) ([]Item, error) {
	var doc any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding items: %w", err)
	}
	// Round trip through JSON so the null types and json tags apply.
	buf, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("decoding items: %w", err)
	}
	return DecodeJSON(bytes.NewReader(buf))
}
