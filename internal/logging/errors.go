package logging

// ErrorKind normalizes request outcomes for logs.
// It maps HTTP status codes and presence of error to a short string label.
func ErrorKind(status int, hasErr bool) string {
	if hasErr && status == 0 {
		return "network_error"
	}
	switch {
	case status == 401:
		return "unauthorized"
	case status == 403:
		return "forbidden"
	case status == 429:
		return "rate_limited"
	case status >= 500 && status < 600:
		return "server_5xx"
	case status >= 400 && status < 500:
		return "client_4xx"
	}
	if hasErr {
		return "error"
	}
	return "ok"
}
