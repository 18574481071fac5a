package middlewares

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// CustomerMiddleware resolves the acting customer from the X-Customer-ID
// header and stores it on the request context. Identity verification is
// delegated to the edge proxy; the header is trusted to be authenticated.
func CustomerMiddleware(ctx *gin.Context) {
	raw := ctx.Request.Header.Get("X-Customer-ID")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id < 1 {
		ctx.AbortWithStatus(401)
		return
	}
	ctx.Set("customerId", uint(id))
	ctx.Set("ip", ctx.ClientIP())
}

// OrganizerMiddleware resolves the acting organizer from X-Organizer-ID.
func OrganizerMiddleware(ctx *gin.Context) {
	raw := ctx.Request.Header.Get("X-Organizer-ID")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id < 1 {
		ctx.AbortWithStatus(401)
		return
	}
	ctx.Set("organizerId", uint(id))
	ctx.Set("ip", ctx.ClientIP())
}
