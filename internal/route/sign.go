package route

import (
	"github.com/SeakMengs/AutoSign/internal/controller"
	"github.com/gin-gonic/gin"
)

// V1_Sign has no auth middleware, the token in the path is the credential.
func V1_Sign(r *gin.RouterGroup, sc *controller.SigningController) {
	v1 := r.Group("/v1/sign")
	{
		v1.GET("/:token", sc.GetSigningContext)
		v1.POST("/:token", sc.Submit)
		v1.POST("/:token/decline", sc.Decline)
		v1.POST("/:token/delegate", sc.Delegate)
		v1.POST("/:token/access", sc.VerifyAccessCode)
	}
}
