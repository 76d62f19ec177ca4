// Package http1 implements the resumable HTTP/1.x object decoder and
// encoder: a byte-stream state machine that turns an inbound stream into
// message-start / content-chunk / last-chunk events, and serializes the
// same event shape back into wire bytes.
package http1

// Method is an HTTP request method token. The codec treats methods as
// opaque strings (unlike the teacher's fixed uint8 ID table) since request
// smuggling and framing rules only care about a handful of names, tested via
// plain string comparison below.
type Method = string

const (
	MethodGET     Method = "GET"
	MethodHEAD    Method = "HEAD"
	MethodPOST    Method = "POST"
	MethodPUT     Method = "PUT"
	MethodDELETE  Method = "DELETE"
	MethodCONNECT Method = "CONNECT"
	MethodOPTIONS Method = "OPTIONS"
	MethodTRACE   Method = "TRACE"
	MethodPATCH   Method = "PATCH"
)

// ReasonPhrase returns the standard reason phrase for a well-known status
// code, or "" if code is not one of the process-wide cached entries — callers
// must supply their own in that case. Mirrors the teacher's pre-compiled
// status-line table (constants.go), generalized from fixed byte slices to a
// lookup usable by any status code the caller constructs.
func ReasonPhrase(code int) string {
	if p, ok := reasonPhrases[code]; ok {
		return p
	}
	return ""
}

var reasonPhrases = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	200: "OK",
	201: "Created",
	202: "Accepted",
	203: "Non-Authoritative Information",
	204: "No Content",
	205: "Reset Content",
	206: "Partial Content",
	300: "Multiple Choices",
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	304: "Not Modified",
	307: "Temporary Redirect",
	308: "Permanent Redirect",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	406: "Not Acceptable",
	408: "Request Timeout",
	409: "Conflict",
	410: "Gone",
	411: "Length Required",
	412: "Precondition Failed",
	413: "Request Entity Too Large",
	414: "URI Too Long",
	415: "Unsupported Media Type",
	417: "Expectation Failed",
	429: "Too Many Requests",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
}

// Well-known header names, grounded on the teacher's pre-compiled header
// byte-slice table (constants.go) — here plain strings, since header.Values
// looks names up case-insensitively and does not benefit from byte-slice
// identity comparisons the way the teacher's inline array scan did.
const (
	headerContentLength    = "Content-Length"
	headerTransferEncoding = "Transfer-Encoding"
	headerConnection       = "Connection"
	headerExpect           = "Expect"
	headerTrailer          = "Trailer"
	headerUpgrade          = "Upgrade"
	headerHost             = "Host"
)

const tokenChunked = "chunked"
const tokenClose = "close"
const tokenUpgrade = "upgrade"
const token100Continue = "100-continue"
