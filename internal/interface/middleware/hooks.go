package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/halcyonlab/usergate/internal/hooks"
	"github.com/halcyonlab/usergate/pkg/response"
)

// RouteHooks runs the request-phase hook chain for a named route before the
// handler body. A hook advancing with an error aborts the request: a
// HaltError picks the status, anything else is reported as internal. The
// chain runs regardless of which store adapter is active.
func RouteHooks(reg *hooks.Registry, route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := make(map[string]string, len(c.Params))
		for _, p := range c.Params {
			params[p.Key] = p.Value
		}
		req := &hooks.RequestInfo{
			Method: c.Request.Method,
			Route:  route,
			Path:   c.Request.URL.Path,
			Params: params,
			Header: c.Request.Header,
			UserID: c.GetString("userID"),
		}
		// Request-phase hooks get a live ResponseInfo with no body yet, so a
		// hook can stage a status or inspect the response without nil checks.
		res := &hooks.ResponseInfo{}
		reg.Execute(hooks.Request, route, req, res, func() {
			c.Next()
		}, func(err error) {
			var halt *hooks.HaltError
			if errors.As(err, &halt) {
				response.AbortErrors(c, halt.Status, response.Msg(halt.Message))
				return
			}
			response.AbortErrors(c, http.StatusInternalServerError, response.Msg("internal error"))
		})
	}
}
