package main

import (
	"net/http"

	"tix/src/inventory"
	"tix/src/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func ticketHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/reservations", func(ctx *gin.Context) {
			var body types.ReserveTicketsRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			customerId := ctx.GetUint("customerId")
			tickets, err := getService().ReserveTickets(ctx.Copy(), &inventory.ReserveInput{
				CustomerID:    customerId,
				TicketTypeID:  body.TicketTypeID,
				Quantity:      body.Quantity,
				CustomerName:  body.CustomerName,
				CustomerEmail: body.CustomerEmail,
				CallerIP:      ctx.GetString("ip"),
			})
			if err != nil {
				logrus.Errorf("Error reserving tickets for customer [%d]: %s", customerId, err.Error())
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": tickets, "reservation_id": tickets[0].ReservationID})
		}).
		POST("/reservations/:id/purchase", func(ctx *gin.Context) {
			var params types.ReservationURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			reservationId := uuid.MustParse(params.ReservationID)
			customerId := ctx.GetUint("customerId")
			tickets, err := getService().PurchaseTickets(ctx.Copy(), customerId, reservationId, ctx.GetString("ip"))
			if err != nil {
				logrus.Errorf("Error purchasing reservation [%s]: %s", reservationId, err.Error())
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tickets})
		}).
		DELETE("/reservations/:id", func(ctx *gin.Context) {
			var params types.ReservationURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			reservationId := uuid.MustParse(params.ReservationID)
			customerId := ctx.GetUint("customerId")
			tickets, err := getService().CancelReservation(ctx.Copy(), customerId, reservationId)
			if err != nil {
				logrus.Errorf("Error cancelling reservation [%s]: %s", reservationId, err.Error())
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tickets})
		}).
		GET("/tickets/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ticket, err := getService().GetTicket(ctx.Copy(), params.ID)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": ticket})
		}).
		GET("/tickets", func(ctx *gin.Context) {
			customerId := ctx.GetUint("customerId")
			tickets, err := getService().ListCustomerTickets(ctx.Copy(), customerId)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tickets})
		}).
		GET("/ticket-types/:id/limit", func(ctx *gin.Context) {
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
			customerId := ctx.GetUint("customerId")
			if err := getService().ValidateCustomerTicketLimit(ctx.Copy(), params.ID, customerId, query.Quantity); err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"allowed": true})
		})
	return g
}

func organizerTicketHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/events/:id/tickets", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			tickets, err := getService().ListEventTickets(ctx.Copy(), params.ID)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tickets})
		}).
		DELETE("/tickets/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ticket, err := getService().CancelTicket(ctx.Copy(), params.ID)
			if err != nil {
				logrus.Errorf("Error cancelling ticket [%d]: %s", params.ID, err.Error())
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": ticket})
		})
	return g
}
