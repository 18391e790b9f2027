package routers

import (
	"Trellis3D-server/routers/api"

	"github.com/gin-gonic/gin"
)

func InitRouter() *gin.Engine {
	r := gin.Default()
	trellis := r.Group("/trellis")
	{
		trellis.POST("/generate", api.Generate3DAsset)
		trellis.GET("/status", api.GetGenerationStatus)
	}
	r.GET("/trellis/status/ws", api.StatusWebSocket)
	return r
}
