package mimic

import (
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const defaultResourceDir = "./resources"

type Option func(*Server)

func WithFileReader(read FileReader) Option {
	return func(s *Server) {
		s.readFile = read
	}
}

func WithResourceDir(dir string) Option {
	return WithFileReader(DirReader(dir))
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func WithLedgerCapacity(capacity int) Option {
	return func(s *Server) {
		s.ledger = NewLedger(capacity)
	}
}

// Server records every request it handles and answers it from the first
// matching expectation. The outer lock makes Reset look atomic to Handle:
// a dispatch sees the registry and ledger either before or after a reset.
type Server struct {
	mu           sync.RWMutex
	expectations *Expectations
	ledger       *Ledger
	readFile     FileReader
	now          func() time.Time
	notify       *notify
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		expectations: &Expectations{},
		ledger:       NewLedger(DefaultLedgerCapacity),
		readFile:     DirReader(defaultResourceDir),
		now:          time.Now,
		notify:       newNotify(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Register(spec ExpectationSpec) (*Expectation, error) {
	expectation, generate, err := newExpectation(spec)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	s.expectations.Add(expectation, generate)
	s.mu.RUnlock()

	log.WithField("id", expectation.ID).Infof("storing expectation %s %s", expectation.Method, expectation.Path)
	return expectation, nil
}

// Handle dispatches one request. The bool reports whether an expectation
// matched; an error after a match is a server fault, such as an unreadable
// response file, and the next candidate is not tried.
func (s *Server) Handle(request Request) (*Response, bool, error) {
	s.mu.RLock()
	s.ledger.Append(request.record(s.now()))
	expectation := find(s.expectations.AllByMethod(request.Method), request)
	var (
		generator *conditional
		modifiers []*Modifier
	)
	if expectation != nil {
		if expectation.Conditional != "" {
			generator, _ = s.expectations.generator(expectation.Conditional)
		}
		modifiers = s.expectations.modifiersFor(expectation.ID)
	}
	s.mu.RUnlock()
	s.notify.Notify()

	if expectation == nil {
		log.Infof("no matching expectation found for %s %s", request.Method, request.Path)
		return nil, false, nil
	}

	res, err := s.resolve(expectation, generator, modifiers, request)
	if err != nil {
		log.WithField("id", expectation.ID).Errorf("unable to resolve response for %s %s. %s", request.Method, request.Path, err.Error())
		return nil, true, err
	}
	return res, true, nil
}

func (s *Server) resolve(expectation *Expectation, generator *conditional, modifiers []*Modifier, request Request) (*Response, error) {
	template := expectation.Response
	if expectation.Conditional != "" {
		if generator == nil {
			return nil, errors.Errorf("no conditional response registered for expectation %s", expectation.ID)
		}
		call, generated := generator.next()
		if generated == nil {
			return nil, errors.Errorf("conditional response for call %d of expectation %s is empty", call, expectation.ID)
		}
		log.WithFields(log.Fields{
			"id":   expectation.ID,
			"call": call,
		}).Debug("generated conditional response")
		template = generated
	}
	if template == nil {
		template = NewResponse(http.StatusOK)
	}

	res, err := template.resolve(s.readFile)
	if err != nil {
		return nil, err
	}

	for _, modifier := range modifiers {
		if err := modifier.apply(res, request); err != nil {
			return nil, errors.Wrapf(err, "unable to apply modifier '%s'", modifier.Path)
		}
	}
	return res, nil
}

func (s *Server) AddModifier(modifier *Modifier) error {
	if err := modifier.validate(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.expectations.AddModifier(modifier) {
		return errors.Errorf("unable to find expectation for modifier. %s", modifier.Expectation)
	}
	return nil
}

func (s *Server) Expectation(id string) (*Expectation, bool) {
	return s.expectations.Load(id)
}

func (s *Server) Expectations() []*Expectation {
	return s.expectations.All()
}

// Calls reports how many responses a conditional expectation has generated.
func (s *Server) Calls(id string) uint64 {
	expectation, ok := s.expectations.Load(id)
	if !ok || expectation.Conditional == "" {
		return 0
	}
	generator, ok := s.expectations.generator(expectation.Conditional)
	if !ok {
		return 0
	}
	return generator.count()
}

func (s *Server) Requests() []RequestRecord {
	return s.ledger.All()
}

func (s *Server) CountMatching(method, path string) int {
	return s.ledger.CountMatching(method, path)
}

// WaitFor blocks until the ledger holds count requests for method and path,
// or duration passes.
func (s *Server) WaitFor(method, path string, count int, delay, duration time.Duration) bool {
	met := retryFor(func(timeLeft time.Duration) bool {
		if s.CountMatching(method, path) >= count {
			return true
		}
		if timeLeft > 0 {
			s.notify.Wait(timeLeft)
		}
		return false
	}, delay, duration)
	return met || s.CountMatching(method, path) >= count
}

func (s *Server) Reset() {
	s.mu.Lock()
	s.expectations.Clear()
	s.ledger.Clear()
	s.mu.Unlock()

	log.Info("cleared expectations and request log")
}
