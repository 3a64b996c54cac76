package route

import (
	"github.com/SeakMengs/AutoSign/internal/controller"
	"github.com/SeakMengs/AutoSign/internal/middleware"
	"github.com/gin-gonic/gin"
)

func V1_Documents(r *gin.RouterGroup, dc *controller.DocumentController, middleware *middleware.Middleware) {
	v1 := r.Group("/v1/documents")
	v1.Use(middleware.AuthMiddleware)
	{
		v1.POST("", dc.CreateDocument)
		v1.GET("/:documentId", dc.GetDocument)
		v1.DELETE("/:documentId", dc.DeleteDocument)
		v1.GET("/:documentId/audit", dc.GetAuditTrail)
		v1.POST("/:documentId/send", dc.SendDocument)
		v1.POST("/:documentId/void", dc.VoidDocument)
		v1.POST("/:documentId/resend", dc.ResendDocument)
		v1.POST("/:documentId/signatures/:signatureId/remind", dc.RemindSigner)
	}
}
