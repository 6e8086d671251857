package fabrica

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/fabrica/pkg/models"
)

// StreamHandler receives each decoded chunk of a streamed response, strictly
// in arrival order.
type StreamHandler func(chunk string)

// GenerateSchema asks the server to draft a schema from a plain-language
// story. The server may answer with a single JSON document or with an
// event-stream that types the same document out incrementally; both paths
// yield the same final result. onChunk (optional) gets each streamed chunk
// as it arrives. The call is bounded by ctx, not the request timeout, since
// generation runs as long as the model keeps typing.
func (c *Client) GenerateSchema(ctx context.Context, story string, onChunk StreamHandler) (*models.SchemaDocument, error) {
	raw, err := json.Marshal(map[string]string{"story": story})
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/schema/generate", strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, resp.Status)
	}

	return decodeSchemaResponse(ctx, resp, onChunk)
}

// decodeSchemaResponse unifies the two response shapes into one terminal
// document. Streamed chunks are concatenated and the whole buffer parsed as
// a single JSON document; the server does not emit newline-delimited
// records.
func decodeSchemaResponse(ctx context.Context, resp *http.Response, onChunk StreamHandler) (*models.SchemaDocument, error) {
	if !isEventStream(resp.Header.Get("Content-Type")) {
		var doc models.SchemaDocument
		if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return &doc, nil
	}

	var buf strings.Builder
	chunk := make([]byte, 4096)
	for {
		// An abandoned stream must stop promptly, not run to exhaustion.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := resp.Body.Read(chunk)
		if n > 0 {
			piece := string(chunk[:n])
			buf.WriteString(piece)
			if onChunk != nil {
				onChunk(piece)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, classifyError(err)
		}
	}

	var doc models.SchemaDocument
	if err := json.Unmarshal([]byte(buf.String()), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &doc, nil
}

func isEventStream(contentType string) bool {
	return strings.HasPrefix(contentType, "text/event-stream")
}
