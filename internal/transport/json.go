package transport

import (
	"context"
	"encoding/json"
	"io"

	"trustline-client-go/internal/apierr"
)

const maxJSONBodySize = 8 << 20

// DoJSON executes the request and decodes a 2xx response body into out.
// Errors are always classifier errors; out may be nil to discard the body.
func (c *Client) DoJSON(ctx context.Context, req *Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxJSONBodySize))
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONBodySize))
	if err != nil {
		return apierr.FromTransport(err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apierr.New(apierr.KindServer, "malformed response body: "+err.Error())
	}
	return nil
}
