package transport

import (
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Fields stripped from request bodies before they reach debug logs.
var sensitiveBodyFields = []string{
	"access_token",
	"refresh_token",
	"password",
	"totp_code",
}

func sanitizeBody(body []byte) []byte {
	if !gjson.ValidBytes(body) {
		return []byte(`"<non-json body>"`)
	}
	out := body
	for _, field := range sensitiveBodyFields {
		if gjson.GetBytes(out, field).Exists() {
			if cleaned, err := sjson.SetBytes(out, field, "<redacted>"); err == nil {
				out = cleaned
			}
		}
	}
	return out
}

func (c *Client) debugLogBody(entry *log.Entry, req *Request) {
	if !log.IsLevelEnabled(log.DebugLevel) {
		return
	}
	if len(req.Body) == 0 || !isMutating(req.Method) {
		return
	}
	entry.WithField("body", string(sanitizeBody(req.Body))).Debug("sending request")
}
