package api

import (
	"net/http"
	"time"

	"Trellis3D-server/models"
	"Trellis3D-server/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// 生成进度 WebSocket 推送（以 Redis 状态槽位为来源：先推当前状态，然后每秒轮询并推送变化）
// Trellis 调用本身没有中间进度，这里推送的就是 /trellis/status 的那份记录
func StatusWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "WebSocket升级失败"})
		return
	}
	defer conn.Close()

	cur, err := service.Status.Read(c.Request.Context())
	if err != nil {
		_ = conn.WriteJSON(map[string]interface{}{"error": "状态存储不可用: " + err.Error()})
		return
	}
	_ = conn.WriteJSON(cur)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	prevStatus, prevProgress := statusFields(cur)

	for range ticker.C {
		cur, err := service.Status.Read(c.Request.Context())
		if err != nil {
			// 查询失败继续重试，连接保持
			continue
		}

		status, progress := statusFields(cur)
		if status != prevStatus || progress != prevProgress {
			if err := conn.WriteJSON(cur); err != nil {
				break
			}
			prevStatus = status
			prevProgress = progress
		}

		if status == models.StatusComplete || status == models.StatusError {
			// 发送最终状态后关闭连接
			_ = conn.WriteJSON(cur)
			break
		}
	}
}

// statusFields 从状态记录里取 status/progress（JSON 数字反序列化成 float64）
func statusFields(m map[string]interface{}) (string, float64) {
	status, _ := m["status"].(string)
	progress, _ := m["progress"].(float64)
	return status, progress
}
