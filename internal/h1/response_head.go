package h1

import (
	"strconv"
	"strings"

	"github.com/FumingPower3925/vesper/internal/date"
)

var (
	headerContentLength = []byte("content-length: ")
	headerDate          = []byte("date: ")
	headerSep           = []byte(": ")
)

// AppendResponseHead appends a serialized response head to buf. A date
// header is added when headers carry none, and a content-length header with
// the given value when contentLength >= 0 and headers carry none.
func AppendResponseHead(buf []byte, major, minor, status int, headers [][2]string, contentLength int) []byte {
	buf = append(buf, "HTTP/"...)
	buf = strconv.AppendInt(buf, int64(major), 10)
	buf = append(buf, '.')
	buf = strconv.AppendInt(buf, int64(minor), 10)
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, int64(status), 10)
	buf = append(buf, ' ')
	buf = append(buf, StatusText(status)...)
	buf = append(buf, crlf...)

	hasLength, hasDate := false, false
	for _, h := range headers {
		switch {
		case strings.EqualFold(h[0], "content-length"):
			hasLength = true
		case strings.EqualFold(h[0], "date"):
			hasDate = true
		}
		buf = append(buf, h[0]...)
		buf = append(buf, headerSep...)
		buf = append(buf, h[1]...)
		buf = append(buf, crlf...)
	}

	if !hasDate {
		buf = append(buf, headerDate...)
		buf = append(buf, date.Current()...)
		buf = append(buf, crlf...)
	}
	if !hasLength && contentLength >= 0 {
		buf = append(buf, headerContentLength...)
		buf = strconv.AppendInt(buf, int64(contentLength), 10)
		buf = append(buf, crlf...)
	}

	return append(buf, crlf...)
}

// StatusText returns the reason phrase for an HTTP status code.
func StatusText(code int) string {
	switch code {
	case 100:
		return "Continue"
	case 101:
		return "Switching Protocols"
	case 200:
		return "OK"
	case 201:
		return "Created"
	case 202:
		return "Accepted"
	case 204:
		return "No Content"
	case 206:
		return "Partial Content"
	case 301:
		return "Moved Permanently"
	case 302:
		return "Found"
	case 303:
		return "See Other"
	case 304:
		return "Not Modified"
	case 307:
		return "Temporary Redirect"
	case 308:
		return "Permanent Redirect"
	case 400:
		return "Bad Request"
	case 401:
		return "Unauthorized"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 408:
		return "Request Timeout"
	case 409:
		return "Conflict"
	case 410:
		return "Gone"
	case 413:
		return "Payload Too Large"
	case 414:
		return "URI Too Long"
	case 415:
		return "Unsupported Media Type"
	case 417:
		return "Expectation Failed"
	case 429:
		return "Too Many Requests"
	case 431:
		return "Request Header Fields Too Large"
	case 500:
		return "Internal Server Error"
	case 501:
		return "Not Implemented"
	case 502:
		return "Bad Gateway"
	case 503:
		return "Service Unavailable"
	case 504:
		return "Gateway Timeout"
	default:
		return "Unknown"
	}
}
