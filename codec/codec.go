// Package codec centralizes JSON encoding for snapshot manifests, snapshot
// info sections and CLI output.
//
// Snapshot containers record the codec by name so readers can decode info
// blocks written by either built-in codec. Catalog manifests do not; a
// manifest must be read with the codec that wrote it, which is safe for the
// built-ins because both speak plain JSON.
package codec

// Codec encodes and decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// Default is the codec used when none is configured.
var Default Codec = GoJSON{}
