package factory

import (
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

func NewModuleLogger(module string) logrus.FieldLogger {
	return logrus.WithField("module", module)
}

// LoggerWithContext adds the request id. The echo RequestID middleware sets it
// on the response, so that header is preferred over the incoming one.
func LoggerWithContext(logger logrus.FieldLogger, ctx echo.Context) logrus.FieldLogger {
	requestID := ctx.Response().Header().Get(echo.HeaderXRequestID)
	if requestID == "" {
		requestID = ctx.Request().Header.Get(echo.HeaderXRequestID)
	}
	return logger.WithField("request_id", requestID)
}
