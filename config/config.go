package config

import (
    "log"
    "os"

    "gopkg.in/yaml.v2"
)

type Config struct {
    Server struct {
        Port string `yaml:"port"`
    } `yaml:"server"`
    Redis struct {
        Addr     string `yaml:"addr"`
        Password string `yaml:"password"`
    } `yaml:"redis"`
    Replicate struct {
        APIToken string `yaml:"api_token"`
        BaseURL  string `yaml:"base_url"`
        Version  string `yaml:"version"`
    } `yaml:"replicate"`
    MinIO struct {
        Enabled   bool   `yaml:"enabled"`
        Endpoint  string `yaml:"endpoint"`
        AccessKey string `yaml:"access_key"`
        SecretKey string `yaml:"secret_key"`
        Bucket    string `yaml:"bucket"`
        UseSSL    bool   `yaml:"use_ssl"`
        Domain    string `yaml:"domain"`
    } `yaml:"minio"`
}

var AppConfig *Config

func InitConfig() {
    f, err := os.Open("config/config.yaml")
    if err != nil {
        log.Fatalf("配置文件读取失败: %v", err)
    }
    defer f.Close()
    decoder := yaml.NewDecoder(f)
    AppConfig = &Config{}
    if err := decoder.Decode(AppConfig); err != nil {
        log.Fatalf("配置文件解析失败: %v", err)
    }

    // Replicate Token 优先读环境变量（部署时用 .env 注入，避免写进配置文件）
    if token := os.Getenv("REPLICATE_API_TOKEN"); token != "" {
        AppConfig.Replicate.APIToken = token
    }
    if AppConfig.Replicate.BaseURL == "" {
        AppConfig.Replicate.BaseURL = "https://api.replicate.com/v1"
    }
}
