package configuration

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type MongoConfig struct {
	Uri                string `json:"uri"`
	Database           string `json:"database"`
	MessagesCollection string `json:"messagesCollection"`
	UsersCollection    string `json:"usersCollection"`
	GroupsCollection   string `json:"groupsCollection"`
}

type ServerConfig struct {
	AppPort        int      `json:"app_port"`
	SocketPort     int      `json:"socket_port"`
	SocketRoute    string   `json:"socket_route"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type HubConfig struct {
	Workers          int `json:"workers"`
	SendBuffer       int `json:"send_buffer"`
	TypingTTLSeconds int `json:"typing_ttl_seconds"`
}

type Config struct {
	Mongo  MongoConfig  `json:"mongo"`
	Server ServerConfig `json:"server"`
	Hub    HubConfig    `json:"hub"`
}

// LoadConfig reads the JSON config file, then overlays any values present in
// the environment (a .env file is loaded when one exists).
func LoadConfig(configPath string) (*Config, error) {
	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	// Missing .env is fine; the file is an optional local overlay.
	_ = godotenv.Load()

	if uri := os.Getenv("CHATHUB_MONGO_URI"); uri != "" {
		config.Mongo.Uri = uri
	}
	if db := os.Getenv("CHATHUB_MONGO_DATABASE"); db != "" {
		config.Mongo.Database = db
	}
	if port := os.Getenv("CHATHUB_APP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.AppPort = p
		}
	}
	if port := os.Getenv("CHATHUB_SOCKET_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.SocketPort = p
		}
	}

	if config.Server.SocketRoute == "" {
		config.Server.SocketRoute = "ws"
	}

	return &config, nil
}
