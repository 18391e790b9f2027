package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"Trellis3D-server/models"
	"Trellis3D-server/service"

	"github.com/gin-gonic/gin"
)

// 提交生成任务：POST /trellis/generate
// 同步阻塞直到 Trellis 返回结果或失败，状态记录在调用前后各写一次，
// 让轮询 /trellis/status 的前端能看到 processing -> complete/error
func Generate3DAsset(c *gin.Context) {
	// 先拿默认值再解析 body，缺省字段保留默认值
	req := models.DefaultGenerate3DRequest()
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log.Println(strings.Repeat("=", 80))
	log.Println("TRELLIS REQUEST PARAMETERS:")
	log.Printf("  images: %v", req.Images)
	log.Println(strings.Repeat("=", 80))

	ctx := c.Request.Context()
	setStatus(ctx, map[string]interface{}{
		"status":   models.StatusProcessing,
		"progress": 5,
		"message":  "Submitting job to Trellis…",
	})

	output, err := service.Engine.Generate(ctx, req)
	if err != nil {
		log.Printf("Error generating 3D asset: %v", err)
		setStatus(ctx, map[string]interface{}{
			"status":   models.StatusError,
			"progress": 0,
			"message":  fmt.Sprintf("Generation failed: %v", err),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprintf("Failed to generate 3D asset: %v", err)})
		return
	}
	log.Println("Successfully generated 3D asset")

	// 可选：把产物转存到 MinIO（未启用时原样返回）
	output = service.MirrorOutput(output)

	// 状态记录只镜像轮询需要的子集，缺的 key 写 null / 空列表
	noBg := output["no_background_images"]
	if noBg == nil {
		noBg = []interface{}{}
	}
	setStatus(ctx, map[string]interface{}{
		"status":               models.StatusComplete,
		"progress":             100,
		"message":              "3D model generated successfully!",
		"model_file":           output["model_file"],
		"color_video":          output["color_video"],
		"no_background_images": noBg,
	})

	c.JSON(http.StatusOK, output)
}

// 查询最近一次生成任务的状态：GET /trellis/status
func GetGenerationStatus(c *gin.Context) {
	status, err := service.Status.Read(c.Request.Context())
	if err != nil {
		// 存储挂了要如实报错，不能退回 idle 默认值误导调用方
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "状态存储不可用: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

// setStatus 状态写入是旁路信号，失败只记日志，绝不影响主流程
func setStatus(ctx context.Context, payload map[string]interface{}) {
	if err := service.Status.Write(ctx, payload); err != nil {
		log.Printf("状态写入失败(忽略): %v", err)
	}
}
