package models

// 生成状态（系统中只跟踪最近一次提交，统一使用这些状态）
const (
	// idle: 尚未提交过任何生成任务（或记录已过期）
	StatusIdle = "idle"
	// processing: 任务已提交给 Trellis，等待返回
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusError      = "error"
)

// 状态存储使用的固定 key（单槽位，不区分任务）
const StatusKey = "trellis_status:current"

// 状态记录的保留时间（秒），每次写入都会重置
const StatusTTLSeconds = 3600

// Generate3DRequest Trellis 生成请求参数
// 字段不做交叉校验，原样转发给 Trellis（images 为空也照样提交）
type Generate3DRequest struct {
	Images               []string `json:"images"`
	Seed                 int      `json:"seed"`
	RandomizeSeed        bool     `json:"randomize_seed"`
	TextureSize          int      `json:"texture_size"`
	MeshSimplify         float64  `json:"mesh_simplify"`
	GenerateColor        bool     `json:"generate_color"`
	GenerateNormal       bool     `json:"generate_normal"`
	GenerateModel        bool     `json:"generate_model"`
	SaveGaussianPly      bool     `json:"save_gaussian_ply"`
	ReturnNoBackground   bool     `json:"return_no_background"`
	SsSamplingSteps      int      `json:"ss_sampling_steps"`
	SsGuidanceStrength   float64  `json:"ss_guidance_strength"`
	SlatSamplingSteps    int      `json:"slat_sampling_steps"`
	SlatGuidanceStrength float64  `json:"slat_guidance_strength"`
}

// DefaultGenerate3DRequest 返回带默认值的请求
// handler 先拿默认值再解析 body，缺省字段保留默认值，显式传 0/false 也能生效
func DefaultGenerate3DRequest() Generate3DRequest {
	return Generate3DRequest{
		Seed:                 1337,
		RandomizeSeed:        false,
		TextureSize:          2048,
		MeshSimplify:         0.96,
		GenerateColor:        true,
		GenerateNormal:       false,
		GenerateModel:        true,
		SaveGaussianPly:      false,
		ReturnNoBackground:   true,
		SsSamplingSteps:      26,
		SsGuidanceStrength:   8.0,
		SlatSamplingSteps:    26,
		SlatGuidanceStrength: 3.2,
	}
}

// TrellisOutput Trellis 返回的产物集合，key 是否存在由生成端的开关决定：
//   - model_file: GLB 模型 (generate_model=true)
//   - color_video: 彩色渲染视频 (generate_color=true)
//   - gaussian_ply: 高斯点云 (save_gaussian_ply=true)
//   - normal_video: 法线渲染视频 (generate_normal=true)
//   - combined_video: 合成视频
//   - no_background_images: 去背景后的输入图 (return_no_background=true)
//
// 这里不做强类型约束，拿到什么就原样返回给调用方
type TrellisOutput map[string]interface{}

// IdleStatus 默认状态：没有记录（或已过期）时 /trellis/status 返回它
func IdleStatus() map[string]interface{} {
	return map[string]interface{}{
		"status":   StatusIdle,
		"progress": 0,
		"message":  "No generation started",
	}
}
