package router

import "github.com/gin-gonic/gin"

// Module registers a feature's routes on the API group. Modules carry their
// own auth and rate-limit middleware per route.
type Module interface {
	Register(rg *gin.RouterGroup)
}
