package mimic

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Admin talks to the admin API, which starts and stops mimic servers.
type Admin struct {
	client *Client
}

func Configuration(url string) *Admin {
	return &Admin{client: New(url)}
}

// SetupServer starts a server for config and returns a client for it.
func (a *Admin) SetupServer(config *Config) (*Client, error) {
	if err := a.client.do(http.MethodPost, "/servers", config, nil, http.StatusNoContent); err != nil {
		return nil, errors.Wrap(err, "unable to set up server")
	}

	host := config.Host
	if host == "" {
		host = "localhost"
	}
	return New(fmt.Sprintf("http://%s:%d", host, config.Port)), nil
}

func (a *Admin) Servers() ([]string, error) {
	var addresses []string
	err := a.client.do(http.MethodGet, "/servers", nil, &addresses, http.StatusOK)
	return addresses, err
}

func (a *Admin) Reset() error {
	return a.client.do(http.MethodDelete, "/servers", nil, nil, http.StatusNoContent)
}
