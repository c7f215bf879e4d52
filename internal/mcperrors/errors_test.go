package mcperrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMissingArgumentMessage(t *testing.T) {
	err := MissingArgument("msg")
	assert.Equal(t, "Missing required argument: msg", err.Error())
	assert.Equal(t, RPCInternalError, err.RPCCode())
}

func TestMethodNotFoundRPCCode(t *testing.T) {
	err := MethodNotFound("bogus/method")
	assert.Equal(t, RPCMethodNotFound, err.RPCCode())
	assert.Contains(t, err.Error(), "bogus/method")
}

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, InvalidArgument("bad").HTTPStatus())
	assert.Equal(t, http.StatusUnauthorized, Unauthenticated("no token").HTTPStatus())
	assert.Equal(t, http.StatusTooManyRequests, RateLimited("slow down").HTTPStatus())
	assert.Equal(t, http.StatusBadGateway, UpstreamFailure(errors.New("boom")).HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, Internal(errors.New("boom")).HTTPStatus())
}

func TestIsAndUnwrap(t *testing.T) {
	cause := errors.New("network down")
	err := UpstreamFailure(cause)

	assert.True(t, Is(err, KindUpstreamFailure))
	assert.False(t, Is(err, KindInternal))
	assert.ErrorIs(t, err, cause)
}

func TestWrapPreservesCauseInMessage(t *testing.T) {
	err := HandlerConstructionFailed(errors.New("no constructor"), "mod_weather", "WeatherTool")
	assert.Contains(t, err.Error(), "mod_weather.WeatherTool")
	assert.Contains(t, err.Error(), "no constructor")
}
