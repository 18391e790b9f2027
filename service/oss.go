package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"time"

	"Trellis3D-server/config"
	"Trellis3D-server/models"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var MinioClient *minio.Client

// InitMinIO 初始化连接，在 main.go 中调用（minio.enabled=false 时跳过）
func InitMinIO() {
	cfg := config.AppConfig.MinIO
	if !cfg.Enabled {
		log.Println("MinIO 未启用，产物保留 Replicate 原始 URL")
		return
	}
	var err error
	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatalf("MinIO 初始化失败: %v", err)
	}
	log.Println("MinIO 连接成功")
}

// 需要镜像的单文件产物 key（no_background_images 是列表，单独处理）
var mirrorKeys = []string{"model_file", "color_video", "gaussian_ply", "normal_video", "combined_video"}

// MirrorOutput 把 Replicate 返回的产物转存到 MinIO，返回替换过 URL 的新输出
// 尽力而为：某个文件转存失败只记日志，保留原始 URL，不影响生成结果本身
func MirrorOutput(output models.TrellisOutput) models.TrellisOutput {
	if MinioClient == nil {
		return output
	}
	jobID := uuid.NewString()
	mirrored := models.TrellisOutput{}
	for k, v := range output {
		mirrored[k] = v
	}

	for _, key := range mirrorKeys {
		src, ok := mirrored[key].(string)
		if !ok || src == "" {
			continue
		}
		objectName := fmt.Sprintf("trellis/%s/%s", jobID, remoteFileName(src, key))
		finalURL, err := downloadAndUploadToMinIO(src, objectName)
		if err != nil {
			log.Printf("转存 %s 失败(保留原始 URL): %v", key, err)
			continue
		}
		mirrored[key] = finalURL
	}

	if imgs, ok := mirrored["no_background_images"].([]interface{}); ok {
		out := make([]interface{}, len(imgs))
		for i, item := range imgs {
			out[i] = item
			src, ok := item.(string)
			if !ok || src == "" {
				continue
			}
			objectName := fmt.Sprintf("trellis/%s/no_background_%d%s", jobID, i, path.Ext(src))
			finalURL, err := downloadAndUploadToMinIO(src, objectName)
			if err != nil {
				log.Printf("转存 no_background_images[%d] 失败(保留原始 URL): %v", i, err)
				continue
			}
			out[i] = finalURL
		}
		mirrored["no_background_images"] = out
	}
	return mirrored
}

// remoteFileName 从源 URL 取文件名，取不到就用产物 key 兜底
func remoteFileName(src, key string) string {
	u, err := url.Parse(src)
	if err != nil || path.Base(u.Path) == "." || path.Base(u.Path) == "/" {
		return key
	}
	return path.Base(u.Path)
}

func downloadAndUploadToMinIO(sourceURL, objectName string) (string, error) {
	resp, err := http.Get(sourceURL)
	if err != nil {
		return "", fmt.Errorf("download failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download status: %d", resp.StatusCode)
	}

	return UploadToMinIO(resp.Body, objectName, resp.ContentLength)
}

// UploadToMinIO 通用上传函数，从 io.Reader 上传到 MinIO，返回可访问的 URL
// 参数:
//   - reader: 文件数据流 (可以是 http.Response.Body 或其他 io.Reader)
//   - objectName: 云端存储路径，例如 "trellis/123/model.glb"
//   - size: 文件大小（字节），-1 表示未知大小
func UploadToMinIO(reader io.Reader, objectName string, size int64) (string, error) {
	ctx := context.Background()
	cfg := config.AppConfig.MinIO
	bucketName := cfg.Bucket

	// 确保 Bucket 存在
	exists, err := MinioClient.BucketExists(ctx, bucketName)
	if err != nil {
		return "", fmt.Errorf("检查 Bucket 失败: %w", err)
	}
	if !exists {
		err = MinioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return "", fmt.Errorf("创建 Bucket 失败: %w", err)
		}
		log.Printf("Bucket '%s' 已创建", bucketName)
	}

	// 根据文件扩展名确定 ContentType
	contentType := "application/octet-stream"
	ext := filepath.Ext(objectName)
	switch ext {
	case ".glb":
		contentType = "model/gltf-binary"
	case ".jpg", ".jpeg":
		contentType = "image/jpeg"
	case ".png":
		contentType = "image/png"
	case ".webp":
		contentType = "image/webp"
	case ".mp4":
		contentType = "video/mp4"
	}

	// 上传文件
	_, err = MinioClient.PutObject(ctx, bucketName, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("上传到 MinIO 失败: %w", err)
	}

	// 生成预签名 URL（72小时有效期）
	expiry := time.Hour * 72
	reqParams := make(url.Values)

	presignedURL, err := MinioClient.PresignedGetObject(ctx, bucketName, objectName, expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("生成签名 URL 失败: %w", err)
	}

	log.Printf("文件已上传: %s", objectName)
	return presignedURL.String(), nil
}
