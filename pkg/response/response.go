// Package response shapes the API envelope: successes are {"data": ...},
// failures are {"errors": [{msg, param?, location?, value?}, ...]}.
package response

import (
	"github.com/gin-gonic/gin"
)

// ErrorItem is one entry of the errors array.
type ErrorItem struct {
	Msg      string `json:"msg"`
	Param    string `json:"param,omitempty"`
	Location string `json:"location,omitempty"`
	Value    any    `json:"value,omitempty"`
}

// Msg builds a bare error item.
func Msg(msg string) ErrorItem {
	return ErrorItem{Msg: msg}
}

// Field builds an error item tied to a named parameter.
func Field(msg, param, location string) ErrorItem {
	return ErrorItem{Msg: msg, Param: param, Location: location}
}

// Envelope wraps a success payload. Handlers build this body first, let the
// response hooks mutate it, and only then serialize.
func Envelope(data any) map[string]any {
	return map[string]any{"data": data}
}

// JSON writes an already-assembled body.
func JSON(c *gin.Context, status int, body map[string]any) {
	c.JSON(status, body)
}

// Errors writes a failure envelope.
func Errors(c *gin.Context, status int, items ...ErrorItem) {
	c.JSON(status, gin.H{"errors": items})
}

// AbortErrors writes a failure envelope and stops the middleware chain.
func AbortErrors(c *gin.Context, status int, items ...ErrorItem) {
	c.AbortWithStatusJSON(status, gin.H{"errors": items})
}
