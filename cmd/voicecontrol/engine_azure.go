//go:build azure

package main

import (
	"github.com/liuscraft/voicecontrol/internal/config"
	"github.com/liuscraft/voicecontrol/internal/engine/azure"
	"github.com/liuscraft/voicecontrol/internal/recognition"
)

func newAzureEngine(cfg config.AzureConfig) (recognition.Engine, error) {
	engine, err := azure.New(azure.Config{
		SubscriptionKey: cfg.SubscriptionKey,
		Region:          cfg.Region,
		Language:        cfg.Language,
	})
	if err != nil {
		return nil, err
	}
	return engine, nil
}
