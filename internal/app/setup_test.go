package app

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/form3tech-oss/mimic/internal/app/configuration"
	"github.com/form3tech-oss/mimic/internal/app/metrics"
	"github.com/form3tech-oss/mimic/pkg/mimic"
	"github.com/pact-foundation/pact-go/utils"
)

var (
	adminURL  *url.URL
	mimicPort int
)

func TestMain(m *testing.M) {
	adminPort, err := utils.GetFreePort()
	if err != nil {
		panic(err)
	}

	adminServer := configuration.ServeAdminAPI(adminPort, metrics.New())

	adminURL, err = url.Parse(fmt.Sprintf("http://localhost:%d", adminPort))
	if err != nil {
		panic(err)
	}

	mimicPort, err = utils.GetFreePort()
	if err != nil {
		panic(err)
	}

	code := m.Run()

	configuration.ShutdownAllServers(context.Background())
	adminServer.Close()
	os.Exit(code)
}

func setupAndWaitForServer(resourceDir string) (*mimic.Client, error) {
	admin := mimic.Configuration(adminURL.String())

	err := retry.Do(func() error {
		_, err := admin.Servers()
		return err
	}, retry.Attempts(15), retry.Delay(100*time.Millisecond), retry.DelayType(retry.FixedDelay))
	if err != nil {
		return nil, err
	}

	client, err := admin.SetupServer(&mimic.Config{
		Port:        mimicPort,
		ResourceDir: resourceDir,
		WaitDelay:   10 * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}

	err = retry.Do(client.IsReady, retry.Attempts(15), retry.Delay(100*time.Millisecond), retry.DelayType(retry.FixedDelay))
	if err != nil {
		return nil, err
	}
	return client, nil
}
