package rule

// Resolve picks the catch target for a failed call, applying the
// dispatch precedence named in spec §4.7: exact status/error code,
// then status class ("4xx"/"5xx"), then "timeout", then "default".
// exact and class are ignored when empty; timeout is only consulted
// when isTimeout is true.
func (c Catch) Resolve(exact, class string, isTimeout bool) (string, bool) {
	if exact != "" {
		if v, ok := c[exact]; ok {
			return v, true
		}
	}
	if class != "" {
		if v, ok := c[class]; ok {
			return v, true
		}
	}
	if isTimeout {
		if v, ok := c["timeout"]; ok {
			return v, true
		}
	}
	v, ok := c["default"]
	return v, ok
}

// StatusClass returns "4xx"/"5xx" for an HTTP status code, or "" for
// any other range.
func StatusClass(status int) string {
	switch {
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return ""
	}
}
