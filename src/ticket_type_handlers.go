package main

import (
	"net/http"

	"tix/src/types"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func ticketTypeHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/ticket-types", func(ctx *gin.Context) {
			var body types.CreateTicketTypeRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			organizerId := ctx.GetUint("organizerId")
			tt, err := getService().CreateTicketType(ctx.Copy(), organizerId, ctx.GetString("ip"), &body)
			if err != nil {
				logrus.Errorf("Error creating ticket type: %s", err.Error())
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": tt})
		}).
		PATCH("/ticket-types/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.UpdateTicketTypeRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			organizerId := ctx.GetUint("organizerId")
			tt, err := getService().UpdateTicketType(ctx.Copy(), organizerId, ctx.GetString("ip"), params.ID, &body)
			if err != nil {
				logrus.Errorf("Error updating ticket type [%d]: %s", params.ID, err.Error())
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tt})
		}).
		DELETE("/ticket-types/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			organizerId := ctx.GetUint("organizerId")
			if err := getService().DeleteTicketType(ctx.Copy(), organizerId, ctx.GetString("ip"), params.ID); err != nil {
				logrus.Errorf("Error deleting ticket type [%d]: %s", params.ID, err.Error())
				respondError(ctx, err)
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	return g
}

func ticketTypeReadHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/ticket-types/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			tt, err := getService().GetTicketType(ctx.Copy(), params.ID)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tt})
		}).
		GET("/ticket-types/:id/stats", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			stats, err := getService().GetTicketTypeStats(ctx.Copy(), params.ID)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": stats})
		}).
		GET("/ticket-types/:id/availability", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var query struct {
				Quantity uint `form:"quantity" binding:"required,gt=0"`
			}
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := getService().ValidateTicketAvailability(ctx.Copy(), params.ID, query.Quantity); err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"available": true})
		}).
		GET("/events/:id/ticket-types", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			tts, err := getService().ListEventTicketTypes(ctx.Copy(), params.ID)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tts})
		})
	return g
}
