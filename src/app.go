package main

import (
	"errors"
	"net/http"
	"sync"

	"tix/src/cache"
	"tix/src/config"
	"tix/src/db"
	"tix/src/guard"
	"tix/src/inventory"
	"tix/src/lib"
	"tix/src/store"
	"tix/src/types"

	"github.com/gin-gonic/gin"
)

var (
	service     *inventory.Service
	serviceOnce sync.Once
)

// newService assembles the inventory service from the shared singletons.
func newService() *inventory.Service {
	cfg := config.Get()
	st := store.NewGormStore(db.GetDb())
	rd := lib.GetRedisClient()
	g := guard.New(
		guard.NewRedisCounterStore(rd),
		st,
		lib.GetClock(),
		cfg.Limits,
	)
	return inventory.NewService(
		st,
		cache.NewRedisCache(rd),
		g,
		lib.GetPaymentGateway(),
		lib.GetClock(),
		cfg,
	)
}

func getService() *inventory.Service {
	serviceOnce.Do(func() {
		if service == nil {
			service = newService()
		}
	})
	return service
}

// setService replaces the service instance (tests).
func setService(s *inventory.Service) {
	serviceOnce.Do(func() {})
	service = s
}

// respondError translates a domain error into an HTTP response. Unknown
// errors are reported as 500 without leaking internals.
func respondError(ctx *gin.Context, err error) {
	var derr *types.Error
	if !errors.As(err, &derr) {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	status := http.StatusUnprocessableEntity
	switch derr.Code {
	case types.CodeValidationFailed:
		status = http.StatusBadRequest
	case types.CodeNotFound:
		status = http.StatusNotFound
	case types.CodeUnauthorized:
		status = http.StatusForbidden
	case types.CodeRateLimitExceeded:
		status = http.StatusTooManyRequests
	case types.CodeDependencyFailure:
		status = http.StatusBadGateway
	}
	ctx.JSON(status, gin.H{"error": derr.Message, "code": derr.Code})
}
