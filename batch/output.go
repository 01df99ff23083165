package batch

import (
	"github.com/pagebatch/pagebatch/operation"
)

// Binary is a binary attachment of an output.
type Binary struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mimeType"`
	FileName string `json:"fileName"`
}

// Output is the result of one item.
type Output struct {
	JSON   map[string]any     `json:"json"`
	Binary map[string]*Binary `json:"binary,omitempty"`
}

func resultOutput(res *operation.Result) Output {
	out := Output{JSON: res.Payload}
	if out.JSON == nil {
		out.JSON = map[string]any{}
	}
	if a := res.Attachment; a != nil {
		out.Binary = map[string]*Binary{
			a.Name: {Data: a.Data, MimeType: a.MimeType, FileName: a.FileName},
		}
	}
	return out
}

// ErrorRecord is the output of an item that failed in a batch that
// continues on failure.
type ErrorRecord struct {
	Message      string
	EngineType   string
	HostPlatform string
}

// Output returns the record as an item output.
func (r ErrorRecord) Output() Output {
	return Output{JSON: map[string]any{
		"error":       r.Message,
		"browserType": r.EngineType,
		"os":          r.HostPlatform,
	}}
}
