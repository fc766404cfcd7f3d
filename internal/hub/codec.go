package hub

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	json "github.com/goccy/go-json"
)

// Telemetry content types.
const (
	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"
)

// encodeBody serialises a telemetry body in the given content type.
// Every other body on the wire (method responses, twin patches) is JSON.
func encodeBody(contentType string, v any) ([]byte, error) {
	switch contentType {
	case ContentTypeJSON, "":
		return json.Marshal(v)
	case ContentTypeCBOR:
		return cbor.Marshal(v)
	default:
		return nil, fmt.Errorf("hub: unsupported content type %q", contentType)
	}
}
