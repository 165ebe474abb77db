package configuration

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/form3tech-oss/mimic/internal/app/mimic"
	"github.com/pact-foundation/pact-go/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	port, err := utils.GetFreePort()
	require.NoError(t, err)
	return port
}

// The server must start, or refuse to, for different combinations of host
// and port.
func TestStartServer(t *testing.T) {
	port1, port2 := freePort(t), freePort(t)

	type testCase struct {
		name        string
		config1     mimic.Config
		config2     mimic.Config
		shouldError bool
	}

	for _, tc := range []testCase{
		{
			name:        "Same host, same port",
			config1:     mimic.Config{Host: "localhost", Port: port1},
			config2:     mimic.Config{Host: "localhost", Port: port1},
			shouldError: true,
		},
		{
			name:        "Same host, different port",
			config1:     mimic.Config{Host: "localhost", Port: port1},
			config2:     mimic.Config{Host: "localhost", Port: port2},
			shouldError: false,
		},
		{
			name:        "No host, same port",
			config1:     mimic.Config{Port: port1},
			config2:     mimic.Config{Port: port1},
			shouldError: true,
		},
		{
			name:        "No host, different port",
			config1:     mimic.Config{Port: port1},
			config2:     mimic.Config{Port: port2},
			shouldError: false,
		},
	} {
		tc := tc
		t.Run(tc.name, func(st *testing.T) {
			defer ShutdownAllServers(context.Background())

			err := StartServer(&tc.config1, mimic.NewServer(), nil)
			require.NoError(st, err)

			err = StartServer(&tc.config2, mimic.NewServer(), nil)
			require.Equalf(st, tc.shouldError, err != nil, "found error: %v", err)
		})
	}
}

func TestStartServerServesRoutes(t *testing.T) {
	defer ShutdownAllServers(context.Background())
	port := freePort(t)

	config := &mimic.Config{Host: "localhost", Port: port}
	require.NoError(t, StartServer(config, mimic.NewServer(), nil))

	res, err := http.Get(fmt.Sprintf("http://localhost:%d/_ready", port))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	assert.Equal(t, []string{fmt.Sprintf("localhost:%d", port)}, RunningServers())
}

func TestStartServerRequiresCertificatesForMutualTLS(t *testing.T) {
	dir := t.TempDir()
	caFile := filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(caFile, []byte("not a certificate"), 0o600))

	for _, tc := range []struct {
		name   string
		config mimic.Config
	}{
		{
			name:   "CA without cert and key",
			config: mimic.Config{Port: freePort(t), TLSCAFile: caFile},
		},
		{
			name:   "unreadable CA",
			config: mimic.Config{Port: freePort(t), TLSCertFile: "cert.pem", TLSKeyFile: "key.pem", TLSCAFile: filepath.Join(dir, "missing.pem")},
		},
		{
			name:   "CA without certificates",
			config: mimic.Config{Port: freePort(t), TLSCertFile: "cert.pem", TLSKeyFile: "key.pem", TLSCAFile: caFile},
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, StartServer(&tc.config, mimic.NewServer(), nil))
			assert.Empty(t, RunningServers())
		})
	}
}

func TestShutdownAllServers(t *testing.T) {
	port := freePort(t)
	require.NoError(t, StartServer(&mimic.Config{Host: "localhost", Port: port}, mimic.NewServer(), nil))

	ShutdownAllServers(context.Background())

	assert.Empty(t, RunningServers())
	_, err := http.Get(fmt.Sprintf("http://localhost:%d/_ready", port))
	assert.Error(t, err)
}
