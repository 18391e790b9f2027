package main

import (
	"fmt"

	"Trellis3D-server/config"
	"Trellis3D-server/routers"
	"Trellis3D-server/service"
)

func main() {
	config.InitConfig()
	fmt.Println("Server starting on port", config.AppConfig.Server.Port)

	service.InitRedis()
	fmt.Println("Redis initialized")

	service.InitMinIO()
	fmt.Println("MinIO initialized")

	service.InitTrellis()
	fmt.Println("Trellis client initialized")

	r := routers.InitRouter()
	r.Run(config.AppConfig.Server.Port)
}
