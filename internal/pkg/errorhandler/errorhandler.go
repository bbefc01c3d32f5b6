package errorhandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/mwork/robokassa-gateway/internal/pkg/logger"
	"github.com/mwork/robokassa-gateway/internal/pkg/response"
	"github.com/mwork/robokassa-gateway/internal/pkg/robokassa"
)

// HandleError logs err through the request logger and sends the JSON error envelope.
// Server-side failures log at error level, client mistakes at warn.
func HandleError(ctx context.Context, w http.ResponseWriter, status int, code, message string, err error) {
	l := logger.FromContext(ctx)
	event := l.Warn()
	if status >= http.StatusInternalServerError {
		event = l.Error()
	}
	if err != nil {
		event = event.Err(err)
	}
	event.
		Str("error_code", code).
		Int("status_code", status).
		Msg(message)

	response.Error(w, status, code, message)
}

// HandleValidation reports per-field messages with 422
func HandleValidation(ctx context.Context, w http.ResponseWriter, details map[string]string) {
	logger.FromContext(ctx).Warn().
		Interface("validation_errors", details).
		Msg("Validation error")

	response.ValidationError(w, details)
}

// HandleGatewayError answers 502 for a failed RoboKassa call. Transport details go to the log,
// not to the client.
func HandleGatewayError(ctx context.Context, w http.ResponseWriter, err error) {
	event := logger.FromContext(ctx).Error().Err(err).Str("external_service", "robokassa")

	var (
		transportErr *robokassa.TransportError
		decodeErr    *robokassa.DecodeError
		gatewayErr   *robokassa.GatewayError
	)
	switch {
	case errors.As(err, &transportErr):
		event.Str("operation", transportErr.Operation).
			Int("status_code", transportErr.StatusCode).
			Str("response_body", transportErr.Body).
			Msg("External service error")
		response.BadGateway(w, "payment gateway unavailable")
	case errors.As(err, &decodeErr):
		event.Str("operation", decodeErr.Operation).Msg("Malformed external service response")
		response.BadGateway(w, "payment gateway returned an invalid response")
	case errors.As(err, &gatewayErr):
		event.Str("operation", gatewayErr.Operation).Msg("External service rejected request")
		response.BadGateway(w, gatewayErr.Error())
	default:
		event.Msg("External service error")
		response.BadGateway(w, "payment gateway unavailable")
	}
}

// IsGatewayError reports whether err came from talking to RoboKassa
func IsGatewayError(err error) bool {
	return errors.Is(err, robokassa.ErrTransport) || errors.Is(err, robokassa.ErrDecode) || errors.Is(err, robokassa.ErrGateway)
}
