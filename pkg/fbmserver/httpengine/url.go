package httpengine

import (
	"net/url"
)

// QueryArgs parses the raw query string into a url.Values map,
// allocating. Prefer QueryBytes on the hot path; this exists for
// handlers that want name/value access without hand-rolled scanning,
// grounded on the percent-decoding net/url already implements.
func (r *Request) QueryArgs() (url.Values, error) {
	if len(r.queryBytes) == 0 {
		return url.Values{}, nil
	}
	return url.ParseQuery(string(r.queryBytes))
}

// DecodeURLEncoded decodes an application/x-www-form-urlencoded body
// read into scratch (typically buffer.Block.DiscardOrFormBuf) into a
// url.Values map. n is the number of valid bytes in scratch.
func DecodeURLEncoded(scratch []byte, n int) (url.Values, error) {
	if n == 0 {
		return url.Values{}, nil
	}
	return url.ParseQuery(string(scratch[:n]))
}
