package httpclient

import (
	"encoding/json"
	"fmt"
	"mime"
	"strings"
)

// IsJSON reports whether contentType names a JSON payload, including
// structured suffixes such as application/problem+json.
func IsJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || mediaType == "text/json" || strings.HasSuffix(mediaType, "+json")
}

// ParseResponse decodes a JSON body into resp.Data. Other content types
// leave Data nil; their raw Body is kept for error reporting.
func ParseResponse(resp *Response) error {
	if len(resp.Body) == 0 || !IsJSON(resp.ContentType) {
		return nil
	}
	var data any
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	resp.Data = data
	return nil
}

// IsSuccessStatus reports a 2xx status.
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
