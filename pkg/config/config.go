package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		EmbedModel  string  `yaml:"embed_model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Corpus struct {
		Dir   string `yaml:"dir"`
		Watch bool   `yaml:"watch"`
	} `yaml:"corpus"`

	Index struct {
		Backend        string  `yaml:"backend"` // "sqlite" or "pgvector"
		Dir            string  `yaml:"dir"`     // snapshot directory for the sqlite backend
		DatabaseURL    string  `yaml:"database_url"`
		TableName      string  `yaml:"table_name"`
		VectorDim      int     `yaml:"vector_dim"`
		TopK           int     `yaml:"top_k"`
		BatchSize      int     `yaml:"batch_size"`
		EmbedRateLimit float64 `yaml:"embed_rate_limit"` // embedding batches per second, 0 = unlimited
	} `yaml:"index"`

	Processor struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
	} `yaml:"processor"`

	Attribution struct {
		Threshold float64 `yaml:"threshold"`
	} `yaml:"attribution"`

	UI struct {
		Streaming bool `yaml:"streaming"`
	} `yaml:"ui"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/askdocs/config.yaml"),
			"/etc/askdocs/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.EmbedModel == "" {
		config.LLM.EmbedModel = "nomic-embed-text:latest"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}

	if config.Corpus.Dir == "" {
		config.Corpus.Dir = "data"
	}

	if config.Index.Backend == "" {
		config.Index.Backend = "sqlite"
	}
	if config.Index.Dir == "" {
		config.Index.Dir = "index"
	}
	if config.Index.TableName == "" {
		config.Index.TableName = "chunks"
	}
	if config.Index.VectorDim == 0 {
		config.Index.VectorDim = 768
	}
	if config.Index.TopK == 0 {
		config.Index.TopK = 4
	}
	if config.Index.BatchSize == 0 {
		config.Index.BatchSize = 16
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 100
	}

	if config.Attribution.Threshold == 0 {
		config.Attribution.Threshold = 0.13
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Index.DatabaseURL = dbURL
	}
	if dir := os.Getenv("ASKDOCS_CORPUS_DIR"); dir != "" {
		config.Corpus.Dir = dir
	}
	if dir := os.Getenv("ASKDOCS_INDEX_DIR"); dir != "" {
		config.Index.Dir = dir
	}
}
