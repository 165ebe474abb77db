package mimic

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// Request is a parsed incoming request. Body is nil when the request had no
// body at all.
type Request struct {
	Method  string
	Path    string
	Query   map[string]string
	Headers map[string]string
	Body    *string
}

// NewRequest keeps the path as sent, so "/files/a%2Fb" stays distinct from
// "/files/a/b". Query values are decoded.
func NewRequest(req *http.Request) (Request, error) {
	var body *string
	if req.Body != nil {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return Request{}, errors.Wrap(err, "unable to read request body")
		}
		if len(data) > 0 {
			s := string(data)
			body = &s
		}
	}

	headers := flattenHeaders(req.Header)
	if req.Host != "" {
		if _, ok := headers["Host"]; !ok {
			headers["Host"] = req.Host
		}
	}

	return Request{
		Method:  req.Method,
		Path:    req.URL.EscapedPath(),
		Query:   parseQueryValues(req.URL),
		Headers: headers,
		Body:    body,
	}, nil
}

// parseQueryValues percent-decodes the query string. A repeated key keeps its
// first value and a key without '=' maps to the empty string.
func parseQueryValues(u *url.URL) map[string]string {
	queryValues := make(map[string]string)
	for q, v := range u.Query() {
		if len(v) > 0 {
			queryValues[q] = v[0]
		}
	}
	return queryValues
}

func flattenHeaders(header http.Header) map[string]string {
	headers := make(map[string]string, len(header))
	for name, values := range header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}
	return headers
}

func (r Request) record(timestamp time.Time) RequestRecord {
	record := RequestRecord{
		Method:    r.Method,
		Path:      r.Path,
		Query:     copyValues(r.Query),
		Headers:   copyValues(r.Headers),
		Timestamp: timestamp,
	}
	if r.Body != nil {
		body := *r.Body
		record.Body = &body
	}
	return record
}

type requestDocument map[string]interface{}

// document exposes the request to JSONPath expressions. A body that parses as
// JSON is exposed as a JSON value, anything else as a string.
func (r Request) document() requestDocument {
	var body interface{}
	if r.Body != nil {
		if err := json.Unmarshal([]byte(*r.Body), &body); err != nil {
			body = *r.Body
		}
	}
	return requestDocument{
		"method":  r.Method,
		"path":    r.Path,
		"query":   toInterfaceMap(r.Query),
		"headers": toInterfaceMap(r.Headers),
		"body":    body,
	}
}

func toInterfaceMap(values map[string]string) map[string]interface{} {
	result := make(map[string]interface{}, len(values))
	for k, v := range values {
		result[k] = v
	}
	return result
}
