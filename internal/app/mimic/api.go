package mimic

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/form3tech-oss/mimic/internal/app/httpresponse"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	defaultDelay    = 500 * time.Millisecond
	defaultDuration = 15 * time.Second
)

const (
	OutcomeMatched   = "matched"
	OutcomeUnmatched = "unmatched"
	OutcomeError     = "error"
)

type Config struct {
	Host           string        `env:"HOST" json:"host"`
	Port           int           `env:"PORT,default=8080" json:"port"`
	AdminPort      int           `env:"ADMIN_PORT" json:"-"`
	ResourceDir    string        `env:"RESOURCE_DIR,default=./resources" json:"resource_dir"`
	LedgerCapacity int           `env:"LEDGER_CAPACITY,default=1000" json:"ledger_capacity"`
	Fixtures       string        `env:"FIXTURES" json:"fixtures"`
	WaitDelay      time.Duration `env:"WAIT_DELAY" json:"wait_delay"`    // Default delay for the wait endpoint
	WaitDuration   time.Duration `env:"WAIT_DURATION" json:"wait_duration"` // Default duration for the wait endpoint
	TLSCertFile    string        `env:"TLS_CERT_FILE" json:"tls_cert_file"`
	TLSKeyFile     string        `env:"TLS_KEY_FILE" json:"tls_key_file"`
	TLSCAFile      string        `env:"TLS_CA_FILE" json:"tls_ca_file"`
	LogLevel       string        `env:"LOG_LEVEL,default=info" json:"-"`
	LogFormat      string        `env:"LOG_FORMAT,default=text" json:"-"`
}

func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Recorder is told the outcome of every dispatched request.
type Recorder interface {
	Dispatched(method, outcome string)
}

type VerifyRequest struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Times  int    `json:"times"`
}

type VerifyResponse struct {
	Path     string `json:"path"`
	Method   string `json:"method"`
	Expected int    `json:"expected"`
	Actual   int    `json:"actual"`
	Success  bool   `json:"success"`
}

type api struct {
	server   *Server
	recorder Recorder
	delay    time.Duration
	duration time.Duration
}

// SetupRoutes serves the control endpoints under "/_" and answers every
// other route from the server's expectations.
func SetupRoutes(e *echo.Echo, server *Server, config *Config, recorder Recorder) {
	a := &api{
		server:   server,
		recorder: recorder,
		delay:    config.WaitDelay,
		duration: config.WaitDuration,
	}
	if a.delay == 0 {
		a.delay = defaultDelay
	}
	if a.duration == 0 {
		a.duration = defaultDuration
	}

	e.Pre(a.dispatchUnroutedMethods)
	e.GET("/_ready", a.readinessHandler)
	e.POST("/_setup", a.setupHandler)
	e.GET("/_expectations", a.expectationsHandler)
	e.POST("/_verify", a.verifyHandler)
	e.GET("/_requests", a.requestsHandler)
	e.POST("/_reset", a.resetHandler)
	e.POST("/_modifiers", a.modifiersHandler)
	e.GET("/_wait", a.waitHandler)
	e.Any("/*", a.dispatchHandler)
}

// routedMethods are the methods echo's Any registers.
var routedMethods = map[string]bool{
	http.MethodConnect: true,
	http.MethodDelete:  true,
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodPatch:   true,
	http.MethodPost:    true,
	echo.PROPFIND:      true,
	http.MethodPut:     true,
	http.MethodTrace:   true,
	echo.REPORT:        true,
}

// dispatchUnroutedMethods sends requests with any other method, such as PURGE,
// straight to dispatch instead of letting the router answer 405.
func (a *api) dispatchUnroutedMethods(next echo.HandlerFunc) echo.HandlerFunc {
	dispatch := middleware.Recover()(a.dispatchHandler)
	return func(c echo.Context) error {
		if routedMethods[c.Request().Method] {
			return next(c)
		}
		return dispatch(c)
	}
}

func (a *api) readinessHandler(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (a *api) setupHandler(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.Errorf("unable to read expectation. %s", err.Error()))
	}

	spec := ExpectationSpec{}
	if err := json.Unmarshal(data, &spec); err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.Errorf("unable to parse expectation from data. %s", err.Error()))
	}

	expectation, err := a.server.Register(spec)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.Errorf("unable to load expectation. %s", err.Error()))
	}
	return c.JSON(http.StatusCreated, expectation)
}

func (a *api) expectationsHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, a.server.Expectations())
}

func (a *api) verifyHandler(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.Errorf("unable to read verification. %s", err.Error()))
	}

	request := VerifyRequest{}
	if err := json.Unmarshal(data, &request); err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.Errorf("unable to parse verification from data. %s", err.Error()))
	}

	method := strings.ToUpper(request.Method)
	actual := a.server.CountMatching(method, request.Path)
	response := VerifyResponse{
		Path:     request.Path,
		Method:   method,
		Expected: request.Times,
		Actual:   actual,
		Success:  request.Times == actual,
	}

	if !response.Success {
		log.Infof("verification failed for %s %s, expected %d calls but got %d", method, request.Path, request.Times, actual)
		return c.JSON(http.StatusBadRequest, response)
	}
	return c.JSON(http.StatusOK, response)
}

func (a *api) requestsHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, a.server.Requests())
}

func (a *api) resetHandler(c echo.Context) error {
	a.server.Reset()
	return c.NoContent(http.StatusOK)
}

func (a *api) modifiersHandler(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.Errorf("unable to read modifier. %s", err.Error()))
	}

	modifier, err := LoadModifier(data)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.Errorf("unable to load modifier. %s", err.Error()))
	}

	if err := a.server.AddModifier(modifier); err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.Error(err.Error()))
	}

	log.Infof("adding modifier '%s' to expectation '%s'", modifier.Path, modifier.Expectation)
	return c.NoContent(http.StatusNoContent)
}

func (a *api) waitHandler(c echo.Context) error {
	waitForCount, err := strconv.Atoi(c.QueryParam("count"))
	if err != nil || waitForCount < 1 {
		waitForCount = 1
	}

	method := strings.ToUpper(c.QueryParam("method"))
	path := c.QueryParam("path")
	if method == "" || path == "" {
		return c.JSON(http.StatusBadRequest, httpresponse.Error("cannot wait for requests, method and path are required"))
	}

	log.WithFields(log.Fields{
		"method": method,
		"path":   path,
		"count":  waitForCount,
	}).Info("waiting")

	if !a.server.WaitFor(method, path, waitForCount, a.delay, a.duration) {
		return c.JSON(http.StatusRequestTimeout, httpresponse.Error("timeout waiting for requests"))
	}
	return c.NoContent(http.StatusOK)
}

func (a *api) dispatchHandler(c echo.Context) error {
	req := c.Request()
	log.Infof("received %s %s", req.Method, req.URL.Path)

	request, err := NewRequest(req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.Errorf("unable to read request. %s", err.Error()))
	}

	res, matched, err := a.server.Handle(request)
	if !matched {
		a.observe(request.Method, OutcomeUnmatched)
		return c.String(http.StatusNotFound, fmt.Sprintf("No matching expectation found for %s %s", request.Method, request.Path))
	}
	if err != nil {
		a.observe(request.Method, OutcomeError)
		var readErr *ResourceReadError
		if errors.As(err, &readErr) {
			return c.JSON(http.StatusInternalServerError, httpresponse.Errorf("Error reading file: %s", readErr.Error()))
		}
		return c.JSON(http.StatusInternalServerError, httpresponse.Errorf("unable to build response. %s", err.Error()))
	}

	a.observe(request.Method, OutcomeMatched)
	return writeResponse(c, res)
}

func (a *api) observe(method, outcome string) {
	if a.recorder != nil {
		a.recorder.Dispatched(method, outcome)
	}
}

func writeResponse(c echo.Context, res *Response) error {
	header := c.Response().Header()
	for _, h := range res.Headers {
		header.Set(h.Name, h.Value)
	}
	c.Response().WriteHeader(res.StatusCode)

	if len(res.Body) == 0 || c.Request().Method == http.MethodHead || !bodyAllowed(res.StatusCode) {
		return nil
	}
	_, err := c.Response().Write(res.Body)
	return err
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}
