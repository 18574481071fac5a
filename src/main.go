package main

import (
	"context"
	"net/http"
	"time"

	"tix/src/config"
	"tix/src/db"
	"tix/src/inventory"
	"tix/src/middlewares"
	"tix/src/models"
	"tix/src/types"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

const (
	apiPrefix string = "/api/v1"
)

// saleDateValidatorFunc rejects sale window dates that are already past.
var saleDateValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	datetime, err := time.Parse(types.TIME_PARSE_FORMAT, date)
	if err != nil {
		return false
	}
	return time.Now().Before(datetime)
}

func setupRouter() *gin.Engine {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("saledate", saleDateValidatorFunc)
	}
	router := gin.Default()
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func maintenanceModeMiddleware(g *gin.Engine) *gin.Engine {
	g.Use(func(ctx *gin.Context) {
		if config.Get().Server.Mode == "maintenance" {
			logrus.Warn("server is under maintenance")
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, "server is under maintenance")
			return
		}
	})
	return g
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix)
	return apiv1
}

func publicRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	return ticketTypeReadHandlers(apiv1)
}

func customerRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	customer := apiv1.Group("")
	customer.Use(middlewares.CustomerMiddleware)
	return ticketHandlers(customer)
}

func organizerRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	organizer := apiv1.Group("/manage")
	organizer.Use(middlewares.OrganizerMiddleware)
	organizer = ticketTypeHandlers(organizer)
	organizer = organizerTicketHandlers(organizer)
	organizer = approvalHandlers(organizer)
	return organizer
}

func migrate() {
	conn := db.GetDb()
	if err := conn.AutoMigrate(
		&models.Organizer{},
		&models.Event{},
		&models.TicketType{},
		&models.Ticket{},
	); err != nil {
		logrus.Fatalf("Error running migrations: %s", err.Error())
	}
}

func main() {
	cfg := config.Get()
	logrus.SetFormatter(&logrus.JSONFormatter{})
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
		logrus.SetLevel(logrus.DebugLevel)
	}

	migrate()

	sweeper := inventory.NewSweeper(getService(), cfg.Inventory.SweepInterval)
	if err := sweeper.Start(context.Background()); err != nil {
		logrus.Fatalf("Error starting reservation sweeper: %s", err.Error())
	}

	router := setupRouter()
	router.Use(cors.Default())
	router = maintenanceModeMiddleware(router)

	publicRoutes(router)
	customerRoutes(router)
	organizerRoutes(router)
	stripeWebhookRoute(router)

	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logrus.Fatalf("Failed to start server: %s", err)
	}
}
