package configuration

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"os"
	"sort"
	"sync"

	"github.com/form3tech-oss/mimic/internal/app/mimic"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var servers sync.Map

// StartServer binds the address from config and serves the engine on it in
// the background. Only one server may run per address.
func StartServer(config *mimic.Config, server *mimic.Server, recorder mimic.Recorder) error {
	address := config.Address()
	if _, loaded := loadServer(address); loaded {
		return fmt.Errorf("server already running at %s", address)
	}

	httpServer, err := newServer(config, server, recorder)
	if err != nil {
		return err
	}

	if _, loaded := servers.LoadOrStore(address, httpServer); loaded {
		return fmt.Errorf("server already running at %s", address)
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		servers.Delete(address)
		return errors.Wrapf(err, "unable to listen on %s", address)
	}

	useTLS := config.TLSCertFile != "" && config.TLSKeyFile != ""
	go func() {
		var err error
		if useTLS {
			err = httpServer.ServeTLS(listener, config.TLSCertFile, config.TLSKeyFile)
		} else {
			err = httpServer.Serve(listener)
		}
		if err != nil && err != http.ErrServerClosed {
			log.Error(err)
		}
	}()

	log.WithField("tls", useTLS).Infof("mimic running at %s", address)
	return nil
}

func loadServer(addr string) (*http.Server, bool) {
	server, loaded := servers.Load(addr)
	if !loaded {
		return nil, false
	}
	return server.(*http.Server), loaded
}

func RunningServers() []string {
	addresses := []string{}
	servers.Range(func(key, _ interface{}) bool {
		addresses = append(addresses, key.(string))
		return true
	})
	sort.Strings(addresses)
	return addresses
}

func ShutdownAllServers(ctx context.Context) {
	servers.Range(func(key, _ interface{}) bool {
		server, loaded := servers.LoadAndDelete(key)
		if loaded {
			if err := server.(*http.Server).Shutdown(ctx); err != nil {
				log.Error(err)
			}
		}
		return true
	})
}

func newServer(config *mimic.Config, server *mimic.Server, recorder mimic.Recorder) (*http.Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	mimic.SetupRoutes(e, server, config, recorder)

	s := http.Server{
		Addr:    config.Address(),
		Handler: e,
	}

	if config.TLSCAFile != "" {
		if config.TLSCertFile == "" || config.TLSKeyFile == "" {
			return nil, errors.New("cannot run in mTLS mode without TLS cert and key")
		}
		caCertFile, err := os.ReadFile(config.TLSCAFile)
		if err != nil {
			return nil, errors.Wrap(err, "error reading CA certificate")
		}
		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(caCertFile) {
			return nil, errors.Errorf("no certificates found in %s", config.TLSCAFile)
		}
		s.TLSConfig = &tls.Config{
			ClientAuth: tls.RequireAndVerifyClientCert,
			ClientCAs:  certPool,
			MinVersion: tls.VersionTLS12,
		}
	}

	return &s, nil
}
