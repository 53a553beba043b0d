// Package form decodes request parameters from query strings,
// application/x-www-form-urlencoded bodies and multipart/form-data bodies.
//
// The decoders work on raw bytes and never return errors: tokens or parts
// that do not match the expected layout are skipped and decoding continues
// with the rest of the input.
package form

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

// SplitURI splits a request URI at the first '?'. ok is false when the URI
// carries no query string, in which case path is the URI unchanged.
func SplitURI(uri string) (path, query string, ok bool) {
	idx := strings.IndexByte(uri, '?')
	if idx < 0 {
		return uri, "", false
	}
	return uri[:idx], uri[idx+1:], true
}

// ParseQuery reports every parameter of a raw query string. Values are not
// percent-decoded.
func ParseQuery(query string, fn func(key, value string)) {
	ParsePairs(query, fn)
}

// ParsePairs splits s on '&' and every token on '='. A token that does not
// split into exactly a key and a value is reported with an empty value.
// Empty fragments are dropped.
func ParsePairs(s string, fn func(key, value string)) {
	for _, pair := range splitNonEmpty(s, '&') {
		kv := splitNonEmpty(pair, '=')
		if len(kv) == 0 {
			// "=" or "==": no key to store.
			continue
		}
		if len(kv) == 2 {
			fn(kv[0], kv[1])
			continue
		}
		fn(kv[0], "")
	}
}

// ParseURLEncoded decodes an application/x-www-form-urlencoded body. The
// whole body is percent-decoded first and '+' is then read as a space. A
// body that is empty, not valid UTF-8 or carries an invalid escape yields
// nothing.
func ParseURLEncoded(body []byte, fn func(key, value string)) {
	if len(body) == 0 || !utf8.Valid(body) {
		return
	}
	decoded, err := url.PathUnescape(string(body))
	if err != nil || !utf8.ValidString(decoded) {
		return
	}
	ParsePairs(strings.ReplaceAll(decoded, "+", " "), fn)
}

// splitNonEmpty splits s around sep and omits empty pieces.
func splitNonEmpty(s string, sep byte) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == rune(sep) })
}
