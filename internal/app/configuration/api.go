package configuration

import (
	"fmt"
	"net/http"

	"github.com/form3tech-oss/mimic/internal/app/httpresponse"
	"github.com/form3tech-oss/mimic/internal/app/metrics"
	"github.com/form3tech-oss/mimic/internal/app/mimic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

type adminAPI struct {
	metrics *metrics.Metrics
}

func ServeAdminAPI(port int, m *metrics.Metrics) *echo.Echo {
	adminServer := newAdminAPI(m)

	go func() {
		address := fmt.Sprintf(":%d", port)
		if err := adminServer.Start(address); err != nil && err != http.ErrServerClosed {
			log.Error(err)
		}
	}()

	return adminServer
}

func newAdminAPI(m *metrics.Metrics) *echo.Echo {
	a := &adminAPI{metrics: m}

	adminServer := echo.New()
	adminServer.HideBanner = true
	adminServer.HidePort = true
	adminServer.GET("/metrics", echo.WrapHandler(m.Handler()))
	adminServer.GET("/servers", a.getServersHandler)
	adminServer.DELETE("/servers", a.deleteServersHandler)
	adminServer.POST("/servers", a.postServersHandler)
	return adminServer
}

func (a *adminAPI) getServersHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, RunningServers())
}

func (a *adminAPI) deleteServersHandler(c echo.Context) error {
	log.Infof("closing all servers")
	ShutdownAllServers(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

func (a *adminAPI) postServersHandler(c echo.Context) error {
	config := mimic.Config{}
	err := c.Bind(&config)
	if err != nil {
		return c.JSON(
			http.StatusBadRequest,
			httpresponse.Errorf("unable to parse server configuration from data. %s", err.Error()),
		)
	}

	log.Infof("setting up server at %s serving files from %s", config.Address(), config.ResourceDir)
	_, err = ConfigureServer(config, a.metrics)
	if err != nil {
		return c.JSON(
			http.StatusInternalServerError,
			httpresponse.Errorf("unable to create server from configuration. %s", err.Error()),
		)
	}

	return c.NoContent(http.StatusNoContent)
}
