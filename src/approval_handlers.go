package main

import (
	"net/http"

	"tix/src/types"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func approvalHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/events/:id/approvals", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			tickets, err := getService().ListPendingApprovals(ctx.Copy(), params.ID)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tickets})
		}).
		PATCH("/tickets/:id/approve", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ticket, err := getService().ApproveTicket(ctx.Copy(), params.ID)
			if err != nil {
				logrus.Errorf("Error approving ticket [%d]: %s", params.ID, err.Error())
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": ticket})
		}).
		PATCH("/tickets/:id/reject", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ticket, err := getService().RejectTicket(ctx.Copy(), params.ID)
			if err != nil {
				logrus.Errorf("Error rejecting ticket [%d]: %s", params.ID, err.Error())
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": ticket})
		})
	return g
}
