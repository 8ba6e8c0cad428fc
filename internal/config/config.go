// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	MockMode  bool            `mapstructure:"mock_mode"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Prompt    PromptConfig    `mapstructure:"prompt"`
	Parser    ParserConfig    `mapstructure:"parser"`
	Tika      TikaConfig      `mapstructure:"tika"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Database  DatabaseConfig  `mapstructure:"database"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// RetrievalConfig 配置检索客户端。
// Mode 为 local 时直接查询进程内索引，为 http 时调用 SearchURL 指向的向量检索服务。
type RetrievalConfig struct {
	Mode           string `mapstructure:"mode"`
	SearchURL      string `mapstructure:"search_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	TopK           int    `mapstructure:"top_k"`
}

// Timeout 返回检索请求的超时时间。
func (c RetrievalConfig) Timeout() time.Duration {
	return seconds(c.TimeoutSeconds, 30)
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	Provider       string `mapstructure:"provider"` // openai | ollama | hash
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	Dimensions     int    `mapstructure:"dimensions"`
	BatchSize      int    `mapstructure:"batch_size"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Timeout 返回单次 embedding 请求的超时时间。
func (c EmbeddingConfig) Timeout() time.Duration {
	return seconds(c.TimeoutSeconds, 60)
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey         string              `mapstructure:"api_key"`
	BaseURL        string              `mapstructure:"base_url"`
	Model          string              `mapstructure:"model"`
	TimeoutSeconds int                 `mapstructure:"timeout_seconds"`
	Generation     LLMGenerationConfig `mapstructure:"generation"`
}

// Timeout 返回模型调用的超时时间。
func (c LLMConfig) Timeout() time.Duration {
	return seconds(c.TimeoutSeconds, 60)
}

// LLMGenerationConfig 配置生成相关参数。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// ChunkingConfig 配置按词切块的窗口大小与重叠。
type ChunkingConfig struct {
	ChunkSize int `mapstructure:"chunk_size"`
	Overlap   int `mapstructure:"overlap"`
}

// StorageConfig 存储本地目录配置。
type StorageConfig struct {
	ChunksDir  string `mapstructure:"chunks_dir"`
	UploadsDir string `mapstructure:"uploads_dir"`
	IndexDir   string `mapstructure:"index_dir"`
}

// PromptConfig 配置提示词模板目录与文件名。
type PromptConfig struct {
	Dir               string `mapstructure:"dir"`
	QATemplate        string `mapstructure:"qa_template"`
	GapTemplate       string `mapstructure:"gap_template"`
	ChecklistTemplate string `mapstructure:"checklist_template"`
}

// ParserConfig 配置模型输出解析。MaxParseAttempts 仅作展示，解析阶段固定为三步。
type ParserConfig struct {
	MaxParseAttempts int    `mapstructure:"max_parse_attempts"`
	FailureMessage   string `mapstructure:"failure_message"`
}

// TikaConfig 存储 Tika 服务器相关的配置，为空时不启用。
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// MinIOConfig 存储 MinIO 对象存储的配置，Endpoint 为空时不启用。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// KafkaConfig 存储 Kafka 相关的配置，Brokers 为空时上传走同步处理。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置，DSN 为空时不启用文档登记。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置，Addr 为空时不记录查询历史。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// 兼容旧部署使用的环境变量名。
var legacyEnv = map[string]string{
	"mock_mode":                  "MOCK_MODE",
	"retrieval.search_url":       "VECTOR_SEARCH_URL",
	"retrieval.timeout_seconds":  "RETRIEVAL_TIMEOUT",
	"llm.base_url":               "GROQ_API_URL",
	"llm.api_key":                "GROK_API_KEY",
	"llm.model":                  "GROQ_MODEL",
	"llm.timeout_seconds":        "GROQ_TIMEOUT",
	"llm.generation.max_tokens":  "GROQ_MAX_TOKENS",
	"llm.generation.temperature": "GROQ_TEMPERATURE",
	"storage.index_dir":          "VECTOR_INDEX_DIR",
	"log.level":                  "LOG_LEVEL",
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = *cfg
}

// Load 读取 .env、YAML 配置文件与环境变量，返回合并后的配置。
// 配置文件不存在时使用默认值，便于在 mock 模式下离线运行。
func Load(configPath string) (*Config, error) {
	// .env 不存在不是错误
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "RAG_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("绑定环境变量 %s 失败: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")

	v.SetDefault("mock_mode", false)

	v.SetDefault("retrieval.mode", "local")
	v.SetDefault("retrieval.search_url", "http://localhost:8000/vector/search")
	v.SetDefault("retrieval.timeout_seconds", 30)
	v.SetDefault("retrieval.top_k", 5)

	v.SetDefault("embedding.provider", "hash")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 384)
	v.SetDefault("embedding.batch_size", 32)
	v.SetDefault("embedding.timeout_seconds", 60)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("llm.generation.temperature", 0.1)
	v.SetDefault("llm.generation.max_tokens", 2048)

	v.SetDefault("chunking.chunk_size", 500)
	v.SetDefault("chunking.overlap", 50)

	v.SetDefault("storage.chunks_dir", "./storage/chunks")
	v.SetDefault("storage.uploads_dir", "./storage/uploads")
	v.SetDefault("storage.index_dir", "./storage/vector_index")

	v.SetDefault("prompt.dir", "./prompts")
	v.SetDefault("prompt.qa_template", "qa_prompt.tmpl")
	v.SetDefault("prompt.gap_template", "gap_prompt.tmpl")
	v.SetDefault("prompt.checklist_template", "checklist_prompt.tmpl")

	v.SetDefault("parser.max_parse_attempts", 3)
	v.SetDefault("parser.failure_message", "needs human review")

	v.SetDefault("tika.server_url", "")

	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_name", "rag-uploads")

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "rag-ingest")
	v.SetDefault("kafka.group_id", "rag-pipeline-go-consumer")

	v.SetDefault("database.mysql.dsn", "")
	v.SetDefault("database.redis.addr", "")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}
