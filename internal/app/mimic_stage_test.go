package app

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/form3tech-oss/mimic/pkg/mimic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MimicStage struct {
	t              *testing.T
	assert         *assert.Assertions
	require        *require.Assertions
	client         *mimic.Client
	resourceDir    string
	expectation    mimic.Expectation
	responses      []*http.Response
	responseBodies [][]byte
	requests       []mimic.RequestRecord
	verifyResult   mimic.VerifyResult
	waitErr        error
}

func NewMimicStage(t *testing.T) (*MimicStage, *MimicStage, *MimicStage) {
	resourceDir := t.TempDir()
	client, err := setupAndWaitForServer(resourceDir)
	if err != nil {
		t.Fatalf("Error setting up mimic: %v", err)
	}

	s := &MimicStage{
		t:           t,
		assert:      assert.New(t),
		require:     require.New(t),
		client:      client,
		resourceDir: resourceDir,
	}

	t.Cleanup(func() {
		if err := mimic.Configuration(adminURL.String()).Reset(); err != nil {
			t.Logf("Error shutting down mimic: %v", err)
		}
	})

	return s, s, s
}

func (s *MimicStage) and() *MimicStage {
	return s
}

func (s *MimicStage) an_expectation_for_(method, path string) *MimicStage {
	expectation, err := s.client.Expect().Method(method).Path(path).Build()
	s.require.NoError(err)
	s.expectation = expectation
	return s
}

func (s *MimicStage) an_expectation_for_answering_(method, path string, status uint16, body interface{}) *MimicStage {
	expectation, err := s.client.Expect().
		Method(method).
		Path(path).
		Respond().
		Status(status).
		JSON(body).
		Build()
	s.require.NoError(err)
	s.expectation = expectation
	return s
}

func (s *MimicStage) a_rate_limited_expectation_allowing_(allowed int, path string) *MimicStage {
	var responses []mimic.Response
	for i := 0; i < allowed; i++ {
		responses = append(responses, mimic.NewResponse(http.StatusOK))
	}
	responses = append(responses, mimic.NewResponse(http.StatusTooManyRequests).
		WithJSONBody(map[string]string{"error": "rate limited"}))

	expectation, err := s.client.Expect().
		Method(http.MethodGet).
		Path(path).
		Respond().
		Sequence(false, responses...).
		Build()
	s.require.NoError(err)
	s.expectation = expectation
	return s
}

func (s *MimicStage) a_cycling_expectation_for_(path string, codes ...uint16) *MimicStage {
	var responses []mimic.Response
	for _, code := range codes {
		responses = append(responses, mimic.NewResponse(code))
	}

	expectation, err := s.client.Expect().
		Method(http.MethodGet).
		Path(path).
		Respond().
		Sequence(true, responses...).
		Build()
	s.require.NoError(err)
	s.expectation = expectation
	return s
}

func (s *MimicStage) a_search_expectation_for_query_(q string, results ...string) *MimicStage {
	_, err := s.client.Expect().
		Method(http.MethodGet).
		Path("/search").
		QueryParam("q", q).
		Respond().
		JSON(map[string]interface{}{"results": results}).
		Build()
	s.require.NoError(err)
	return s
}

func (s *MimicStage) a_fallback_search_expectation() *MimicStage {
	_, err := s.client.Expect().
		Method(http.MethodGet).
		Path("/search").
		Respond().
		JSON(map[string]interface{}{"results": []string{}}).
		Build()
	s.require.NoError(err)
	return s
}

func (s *MimicStage) an_expectation_for_body_(path, body string, status uint16) *MimicStage {
	expectation, err := s.client.Expect().
		Method(http.MethodPost).
		Path(path).
		Header("Content-Type", "application/json").
		Body(body).
		Respond().
		Status(status).
		Build()
	s.require.NoError(err)
	s.expectation = expectation
	return s
}

func (s *MimicStage) a_response_file_(name, content string) *MimicStage {
	s.require.NoError(os.WriteFile(filepath.Join(s.resourceDir, name), []byte(content), 0o600))
	return s
}

func (s *MimicStage) an_expectation_answering_from_file_(path, name string) *MimicStage {
	expectation, err := s.client.Expect().
		Method(http.MethodGet).
		Path(path).
		Respond().
		JSONFile(name).
		Build()
	s.require.NoError(err)
	s.expectation = expectation
	return s
}

func (s *MimicStage) a_modified_response_status_of_(code int, attempt *int) *MimicStage {
	s.require.NoError(s.client.ForExpectation(s.expectation.ID).AddModifier("$.status", fmt.Sprint(code), attempt))
	return s
}

func (s *MimicStage) a_response_body_field_copied_from_query_(field, param string) *MimicStage {
	s.require.NoError(s.client.ForExpectation(s.expectation.ID).AddModifierFromRequest("$.body."+field, "$.query."+param, nil))
	return s
}

func (s *MimicStage) n_requests_are_sent_to_(n int, method, path string) *MimicStage {
	for i := 0; i < n; i++ {
		s.send(method, path, nil)
	}
	return s
}

func (s *MimicStage) a_request_is_sent_to_(method, path string) *MimicStage {
	s.send(method, path, nil)
	return s
}

func (s *MimicStage) a_json_request_is_sent_to_(path, body string) *MimicStage {
	s.send(http.MethodPost, path, []byte(body))
	return s
}

func (s *MimicStage) the_server_is_reset() *MimicStage {
	s.require.NoError(s.client.Reset())
	return s
}

func (s *MimicStage) the_recorded_requests_are_fetched() *MimicStage {
	requests, err := s.client.Requests()
	s.require.NoError(err)
	s.requests = requests
	return s
}

func (s *MimicStage) requests_for_are_verified_(method, path string, times int) *MimicStage {
	result, err := s.client.Verify(method, path, times)
	s.require.NoError(err)
	s.verifyResult = result
	return s
}

func (s *MimicStage) the_client_waits_for_(count int, method, path string) *MimicStage {
	s.waitErr = s.client.WaitFor(method, path, count)
	return s
}

func (s *MimicStage) send(method, path string, body []byte) {
	req, err := http.NewRequest(method, fmt.Sprintf("http://localhost:%d%s", mimicPort, path), bytes.NewReader(body))
	s.require.NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := http.DefaultClient.Do(req)
	s.require.NoError(err)
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	s.require.NoError(err)

	s.responses = append(s.responses, res)
	s.responseBodies = append(s.responseBodies, data)
}

func (s *MimicStage) the_response_codes_are_(codes ...int) *MimicStage {
	var actual []int
	for _, res := range s.responses {
		actual = append(actual, res.StatusCode)
	}
	s.assert.Equal(codes, actual)
	return s
}

func (s *MimicStage) the_nth_response_body_is_(n int, body string) *MimicStage {
	s.require.GreaterOrEqual(len(s.responseBodies), n)
	s.assert.JSONEq(body, string(s.responseBodies[n-1]))
	return s
}

func (s *MimicStage) the_nth_response_text_is_(n int, text string) *MimicStage {
	s.require.GreaterOrEqual(len(s.responseBodies), n)
	s.assert.Equal(text, string(s.responseBodies[n-1]))
	return s
}

func (s *MimicStage) the_nth_response_header_is_(n int, name, value string) *MimicStage {
	s.require.GreaterOrEqual(len(s.responses), n)
	s.assert.Equal(value, s.responses[n-1].Header.Get(name))
	return s
}

func (s *MimicStage) the_verification_succeeded_with_(actual int) *MimicStage {
	s.assert.True(s.verifyResult.Success)
	s.assert.Equal(actual, s.verifyResult.Actual)
	return s
}

func (s *MimicStage) the_verification_failed_with_(actual int) *MimicStage {
	s.assert.False(s.verifyResult.Success)
	s.assert.Equal(actual, s.verifyResult.Actual)
	return s
}

func (s *MimicStage) the_recorded_paths_are_(paths ...string) *MimicStage {
	var actual []string
	for _, r := range s.requests {
		actual = append(actual, r.Path)
	}
	s.assert.Equal(paths, actual)
	return s
}

func (s *MimicStage) the_nth_recorded_request_has_query_(n int, name, value string) *MimicStage {
	s.require.GreaterOrEqual(len(s.requests), n)
	s.assert.Equal(value, s.requests[n-1].Query[name])
	return s
}

func (s *MimicStage) the_server_has_no_expectations() *MimicStage {
	expectations, err := s.client.Expectations()
	s.require.NoError(err)
	s.assert.Empty(expectations)
	return s
}

func (s *MimicStage) the_server_has_(n int) *MimicStage {
	expectations, err := s.client.Expectations()
	s.require.NoError(err)
	s.assert.Len(expectations, n)
	return s
}

func (s *MimicStage) the_wait_succeeded() *MimicStage {
	s.assert.NoError(s.waitErr)
	return s
}
