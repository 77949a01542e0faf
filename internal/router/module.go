package router

import "github.com/gin-gonic/gin"

// Module is anything that can mount its routes on the shared /api group.
type Module interface {
	Register(rg *gin.RouterGroup)
}
