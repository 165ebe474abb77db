package mimic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type Client struct {
	client http.Client
	url    string
}

type ExpectationSetup struct {
	expectation string
	client      *Client
}

func New(url string) *Client {
	return &Client{
		client: http.Client{
			Timeout: 30 * time.Second,
		},
		url: strings.TrimSuffix(url, "/"),
	}
}

// Expect starts building an expectation. Nothing is sent until Build.
func (c *Client) Expect() *ExpectationBuilder {
	return &ExpectationBuilder{
		client: c,
		spec: expectationSpec{
			Method: http.MethodGet,
			Path:   "/",
		},
	}
}

func (c *Client) ForExpectation(id string) ExpectationSetup {
	return ExpectationSetup{
		expectation: id,
		client:      c,
	}
}

func (c *Client) IsReady() error {
	return c.do(http.MethodGet, "/_ready", nil, nil, http.StatusOK)
}

func (c *Client) Expectations() ([]Expectation, error) {
	var expectations []Expectation
	err := c.do(http.MethodGet, "/_expectations", nil, &expectations, http.StatusOK)
	return expectations, err
}

func (c *Client) Requests() ([]RequestRecord, error) {
	var requests []RequestRecord
	err := c.do(http.MethodGet, "/_requests", nil, &requests, http.StatusOK)
	return requests, err
}

// Verify reports how many recorded requests match method and path. A count
// other than times is not an error; check Success on the result.
func (c *Client) Verify(method, path string, times int) (VerifyResult, error) {
	body := map[string]interface{}{
		"method": method,
		"path":   path,
		"times":  times,
	}
	var result VerifyResult
	err := c.do(http.MethodPost, "/_verify", body, &result, http.StatusOK, http.StatusBadRequest)
	return result, err
}

func (c *Client) Reset() error {
	return c.do(http.MethodPost, "/_reset", nil, nil, http.StatusOK)
}

func (c *Client) WaitFor(method, path string, count int) error {
	q := url.Values{}
	q.Add("method", method)
	q.Add("path", path)
	q.Add("count", strconv.Itoa(count))

	err := c.do(http.MethodGet, "/_wait?"+q.Encode(), nil, nil, http.StatusOK)
	if err != nil {
		return errors.Wrapf(err, "timeout waiting for %d %s %s requests", count, method, path)
	}
	return nil
}

func (s ExpectationSetup) AddModifier(path, value string, attempt *int) error {
	return s.client.addModifier(s.modifier(path, value, attempt))
}

// AddModifierFromRequest sets path to the value jsonPath selects from the
// incoming request, e.g. "$.query.id" or "$.body.name".
func (s ExpectationSetup) AddModifierFromRequest(path, jsonPath string, attempt *int) error {
	body := s.modifier(path, jsonPath, attempt)
	body["source"] = "request"
	return s.client.addModifier(body)
}

func (s ExpectationSetup) modifier(path, value string, attempt *int) map[string]interface{} {
	body := map[string]interface{}{
		"expectation": s.expectation,
		"path":        path,
		"value":       value,
	}
	if attempt != nil {
		body["attempt"] = *attempt
	}
	return body
}

func (c *Client) addModifier(body map[string]interface{}) error {
	return c.do(http.MethodPost, "/_modifiers", body, nil, http.StatusNoContent)
}

func (c *Client) do(method, path string, body, out interface{}, expected ...int) error {
	var reader io.Reader
	if body != nil {
		content, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request")
		}
		reader = bytes.NewReader(content)
	}

	req, err := http.NewRequest(method, c.url+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to call %s %s", method, path)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	if !statusIn(res.StatusCode, expected) {
		return fmt.Errorf("unexpected status %d from %s %s: %s", res.StatusCode, method, path, strings.TrimSpace(string(data)))
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.Wrap(err, "failed to parse response")
		}
	}
	return nil
}

func statusIn(status int, expected []int) bool {
	for _, e := range expected {
		if status == e {
			return true
		}
	}
	return false
}
