package mimic

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"gopkg.in/yaml.v3"
)

const (
	mediaTypeJSON     = "application/json"
	headerContentType = "Content-Type"
)

type Header struct {
	Name  string
	Value string
}

// Headers keeps response headers in registration order. Names keep their case
// and Get compares them exactly.
type Headers []Header

func (h Headers) Get(name string) (string, bool) {
	for _, header := range h {
		if header.Name == name {
			return header.Value, true
		}
	}
	return "", false
}

func (h *Headers) Set(name, value string) {
	for i, header := range *h {
		if header.Name == name {
			(*h)[i].Value = value
			return
		}
	}
	*h = append(*h, Header{Name: name, Value: value})
}

func (h Headers) hasFold(name string) bool {
	for _, header := range h {
		if strings.EqualFold(header.Name, name) {
			return true
		}
	}
	return false
}

func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	return append(Headers(nil), h...)
}

func (h Headers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, header := range h {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(header.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(header.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (h *Headers) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return errors.Wrap(err, "unable to parse headers")
	}
	if tok == nil {
		*h = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("unable to parse headers, expected an object")
	}

	var headers Headers
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return errors.Wrap(err, "unable to parse headers")
		}
		name, _ := tok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return errors.Wrapf(err, "unable to parse value of header '%s'", name)
		}
		headers.Set(name, value)
	}
	if _, err := dec.Token(); err != nil {
		return errors.Wrap(err, "unable to parse headers")
	}

	*h = headers
	return nil
}

func (h *Headers) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!null" {
		*h = nil
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return errors.Errorf("unable to parse headers at line %d, expected a mapping", value.Line)
	}

	var headers Headers
	for i := 0; i+1 < len(value.Content); i += 2 {
		var name, val string
		if err := value.Content[i].Decode(&name); err != nil {
			return errors.Wrap(err, "unable to parse header name")
		}
		if err := value.Content[i+1].Decode(&val); err != nil {
			return errors.Wrapf(err, "unable to parse value of header '%s'", name)
		}
		headers.Set(name, val)
	}

	*h = headers
	return nil
}

// ResponseTemplate describes what to send back for a matched expectation.
// Body holds an inline JSON value; BodyFile names a file read through the
// server's FileReader the first time it is needed. When both are set Body wins.
type ResponseTemplate struct {
	StatusCode uint16
	Headers    Headers
	Body       interface{}
	BodyFile   string

	cache fileCache
}

func NewResponse(statusCode uint16) *ResponseTemplate {
	return &ResponseTemplate{StatusCode: statusCode}
}

func (r *ResponseTemplate) WithHeader(name, value string) *ResponseTemplate {
	r.Headers.Set(name, value)
	return r
}

func (r *ResponseTemplate) WithJSONBody(body interface{}) *ResponseTemplate {
	r.Body = body
	r.ensureContentType()
	return r
}

func (r *ResponseTemplate) WithJSONFile(name string) *ResponseTemplate {
	r.BodyFile = name
	r.ensureContentType()
	return r
}

func (r *ResponseTemplate) ensureContentType() {
	if r.Body == nil && r.BodyFile == "" {
		return
	}
	if !r.Headers.hasFold(headerContentType) {
		r.Headers.Set(headerContentType, mediaTypeJSON)
	}
}

type responseDocument struct {
	StatusCode *uint16         `json:"status_code,omitempty" yaml:"status_code"`
	Headers    Headers         `json:"headers" yaml:"headers"`
	Body       json.RawMessage `json:"body,omitempty" yaml:"-"`
	BodyFile   string          `json:"body_file,omitempty" yaml:"body_file"`
}

func (r *ResponseTemplate) MarshalJSON() ([]byte, error) {
	statusCode := r.StatusCode
	doc := responseDocument{
		StatusCode: &statusCode,
		Headers:    r.Headers,
		BodyFile:   r.BodyFile,
	}
	if r.Body != nil {
		body, err := json.Marshal(r.Body)
		if err != nil {
			return nil, errors.Wrap(err, "unable to encode response body")
		}
		doc.Body = body
	}
	return json.Marshal(doc)
}

func (r *ResponseTemplate) UnmarshalJSON(data []byte) error {
	var doc responseDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(err, "unable to parse response")
	}

	var body interface{}
	if len(doc.Body) > 0 {
		dec := json.NewDecoder(bytes.NewReader(doc.Body))
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			return errors.Wrap(err, "unable to parse response body")
		}
	}

	r.apply(doc, body)
	return nil
}

func (r *ResponseTemplate) UnmarshalYAML(value *yaml.Node) error {
	var doc responseDocument
	if err := value.Decode(&doc); err != nil {
		return errors.Wrap(err, "unable to parse response")
	}

	var fields struct {
		Body interface{} `yaml:"body"`
	}
	if err := value.Decode(&fields); err != nil {
		return errors.Wrap(err, "unable to parse response body")
	}

	r.apply(doc, fields.Body)
	return nil
}

func (r *ResponseTemplate) apply(doc responseDocument, body interface{}) {
	r.StatusCode = http.StatusOK
	if doc.StatusCode != nil {
		r.StatusCode = *doc.StatusCode
	}
	r.Headers = doc.Headers
	r.Body = body
	r.BodyFile = doc.BodyFile
	r.ensureContentType()
}

// Response is a resolved ResponseTemplate, ready to be written out.
type Response struct {
	StatusCode int
	Headers    Headers
	Body       []byte
}

func (r *ResponseTemplate) resolve(read FileReader) (*Response, error) {
	statusCode := int(r.StatusCode)
	if statusCode < 100 || statusCode > 999 {
		statusCode = http.StatusOK
	}

	res := &Response{
		StatusCode: statusCode,
		Headers:    r.Headers.Clone(),
	}

	switch {
	case r.Body != nil:
		body, err := json.Marshal(r.Body)
		if err != nil {
			return nil, errors.Wrap(err, "unable to encode response body")
		}
		res.Body = body
	case r.BodyFile != "":
		content, err := r.cache.load(r.BodyFile, read)
		if err != nil {
			return nil, err
		}
		if gjson.ValidBytes(content) {
			res.Body = pretty.Ugly(content)
		} else {
			res.Body = append([]byte(nil), content...)
		}
	}

	return res, nil
}

type FileReader func(name string) ([]byte, error)

// DirReader reads response files relative to dir. Names cannot climb out of it.
func DirReader(dir string) FileReader {
	return func(name string) ([]byte, error) {
		return os.ReadFile(filepath.Join(dir, filepath.FromSlash(path.Clean("/"+name))))
	}
}

type ResourceReadError struct {
	Name string
	Err  error
}

func (e *ResourceReadError) Error() string {
	return "unable to read response file '" + e.Name + "': " + e.Err.Error()
}

func (e *ResourceReadError) Unwrap() error {
	return e.Err
}

// fileCache holds file content once read. Concurrent first reads may both hit
// the reader and the last write wins. Failed reads are not cached.
type fileCache struct {
	mu      sync.RWMutex
	loaded  bool
	content []byte
}

func (c *fileCache) load(name string, read FileReader) ([]byte, error) {
	c.mu.RLock()
	content, loaded := c.content, c.loaded
	c.mu.RUnlock()
	if loaded {
		return content, nil
	}

	if read == nil {
		return nil, &ResourceReadError{Name: name, Err: errors.New("no file reader configured")}
	}
	content, err := read(name)
	if err != nil {
		return nil, &ResourceReadError{Name: name, Err: err}
	}

	c.mu.Lock()
	c.content, c.loaded = content, true
	c.mu.Unlock()
	return content, nil
}
