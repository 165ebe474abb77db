package app

import (
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/form3tech-oss/mimic/pkg/mimic"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type ConcurrentMimicStage struct {
	t                *testing.T
	assert           *assert.Assertions
	client           *mimic.Client
	requestsPerRound int
	rounds           int
	mu               sync.Mutex
	statusCodes      map[int]int
}

func NewConcurrentMimicStage(t *testing.T) (*ConcurrentMimicStage, *ConcurrentMimicStage, *ConcurrentMimicStage) {
	client, err := setupAndWaitForServer(t.TempDir())
	if err != nil {
		t.Fatalf("Error setting up mimic: %v", err)
	}

	s := &ConcurrentMimicStage{
		t:           t,
		assert:      assert.New(t),
		client:      client,
		statusCodes: map[int]int{},
	}

	t.Cleanup(func() {
		if err := mimic.Configuration(adminURL.String()).Reset(); err != nil {
			t.Logf("Error shutting down mimic: %v", err)
		}
	})

	return s, s, s
}

func (s *ConcurrentMimicStage) and() *ConcurrentMimicStage {
	return s
}

func (s *ConcurrentMimicStage) a_sequence_that_cycles_through_(codes ...uint16) *ConcurrentMimicStage {
	var responses []mimic.Response
	for _, code := range codes {
		responses = append(responses, mimic.NewResponse(code))
	}
	_, err := s.client.Expect().
		Method(http.MethodGet).
		Path("/accounts/*").
		Respond().
		Sequence(true, responses...).
		Build()
	s.assert.NoError(err)
	return s
}

func (s *ConcurrentMimicStage) x_concurrent_requests_are_made_for_y_rounds(x, y int) *ConcurrentMimicStage {
	s.requestsPerRound = x
	s.rounds = y

	wg := sync.WaitGroup{}
	for round := 0; round < y; round++ {
		for i := 0; i < x; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				s.makeRequest(fmt.Sprintf("/accounts/%d", i))
			}(i)
		}
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()
	return s
}

func (s *ConcurrentMimicStage) makeRequest(path string) {
	res, err := http.Get(fmt.Sprintf("http://localhost:%d%s", mimicPort, path))
	if err != nil {
		log.Error(err)
		s.assert.NoError(err)
		return
	}
	res.Body.Close()

	s.mu.Lock()
	s.statusCodes[res.StatusCode]++
	s.mu.Unlock()
}

func (s *ConcurrentMimicStage) the_status_codes_are_shared_evenly_between_(codes ...int) *ConcurrentMimicStage {
	total := s.requestsPerRound * s.rounds
	for _, code := range codes {
		s.assert.Equal(total/len(codes), s.statusCodes[code], "status %d", code)
	}
	return s
}

func (s *ConcurrentMimicStage) every_request_is_recorded() *ConcurrentMimicStage {
	requests, err := s.client.Requests()
	s.assert.NoError(err)
	s.assert.Len(requests, s.requestsPerRound*s.rounds)
	return s
}
