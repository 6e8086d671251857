package importer

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/kiranshivaraju/fabrica/pkg/models"
)

// ReadUpload parses a schema document from an uploaded file. The file must
// declare itself JSON — content type application/json or a .json name —
// before any bytes are parsed.
func ReadUpload(name, contentType string, r io.Reader) (*models.SchemaDocument, error) {
	if !isJSONUpload(name, contentType) {
		return nil, fmt.Errorf("%w: %q (%s)", ErrUnsupportedFormat, name, contentType)
	}

	var doc models.SchemaDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return &doc, nil
}

// DecodeSharePayload parses a schema carried inside a share-link query value:
// a base64-encoded JSON document that was percent-encoded into the URL.
func DecodeSharePayload(raw string) (*models.SchemaDocument, error) {
	unescaped, err := url.QueryUnescape(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: percent decoding: %v", ErrMalformedDocument, err)
	}

	decoded, err := base64.StdEncoding.DecodeString(unescaped)
	if err != nil {
		// Some emitters strip the padding.
		decoded, err = base64.RawStdEncoding.DecodeString(unescaped)
		if err != nil {
			return nil, fmt.Errorf("%w: base64 decoding: %v", ErrMalformedDocument, err)
		}
	}

	var doc models.SchemaDocument
	if err := json.Unmarshal(decoded, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return &doc, nil
}

func isJSONUpload(name, contentType string) bool {
	if strings.HasPrefix(contentType, "application/json") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(name), ".json")
}
