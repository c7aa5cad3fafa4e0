package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"

	"github.com/sdobridnuk/shardroute/pkg/routerlog"
)

type RouterCfg struct {
	LogLevel string `json:"log_level" toml:"log_level" yaml:"log_level"`

	// EnableRouterExecution turns the single-shard router path on and off.
	// When disabled, SELECT statements are never classified routable.
	EnableRouterExecution bool `json:"enable_router_execution" toml:"enable_router_execution" yaml:"enable_router_execution"`

	// Coordinator marks this node as the coordinating node. Reference
	// table modifications are accepted only on the coordinator.
	Coordinator bool `json:"coordinator" toml:"coordinator" yaml:"coordinator"`
}

var cfgRouter = RouterCfg{
	EnableRouterExecution: true,
	Coordinator:           true,
}

func LoadRouterCfg(cfgPath string) error {
	file, err := os.Open(cfgPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()

	if err := initRouterConfig(file, cfgPath); err != nil {
		return err
	}

	if err := routerlog.UpdateZeroLogLevel(cfgRouter.LogLevel); err != nil {
		return err
	}

	configBytes, err := json.MarshalIndent(cfgRouter, "", "  ")
	if err != nil {
		return err
	}

	log.Println("Running config:", string(configBytes))
	return nil
}

func initRouterConfig(file *os.File, cfgPath string) error {
	switch filepath.Ext(cfgPath) {
	case ".toml":
		_, err := toml.NewDecoder(file).Decode(&cfgRouter)
		return err
	default:
		return yaml.NewDecoder(file).Decode(&cfgRouter)
	}
}

func RouterConfig() *RouterCfg {
	return &cfgRouter
}
