package mimic

import (
	engine "github.com/form3tech-oss/mimic/internal/app/mimic"
)

type Header = engine.Header

// Headers keeps response headers in the order they were added.
type Headers = engine.Headers

type Response struct {
	StatusCode uint16      `json:"status_code"`
	Headers    Headers     `json:"headers,omitempty"`
	Body       interface{} `json:"body,omitempty"`
	BodyFile   string      `json:"body_file,omitempty"`
}

func NewResponse(statusCode uint16) Response {
	return Response{StatusCode: statusCode}
}

func (r Response) WithHeader(name, value string) Response {
	r.Headers = r.Headers.Clone()
	r.Headers.Set(name, value)
	return r
}

func (r Response) WithJSONBody(body interface{}) Response {
	r.Body = body
	return r.withJSONContentType()
}

func (r Response) WithJSONFile(name string) Response {
	r.BodyFile = name
	return r.withJSONContentType()
}

func (r Response) withJSONContentType() Response {
	if _, ok := r.Headers.Get("Content-Type"); ok {
		return r
	}
	return r.WithHeader("Content-Type", "application/json")
}

type Expectation struct {
	ID          string            `json:"id"`
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	Query       map[string]string `json:"query_params,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        *string           `json:"body,omitempty"`
	Response    *Response         `json:"response,omitempty"`
	Responses   []Response        `json:"responses,omitempty"`
	Cycle       bool              `json:"cycle,omitempty"`
	Conditional string            `json:"conditional,omitempty"`
}

type RequestRecord engine.RequestRecord

type VerifyResult engine.VerifyResponse

type Config engine.Config
