//go:build !azure

package main

import (
	"errors"
	"testing"

	"github.com/liuscraft/voicecontrol/internal/config"
)

func TestBuildEngine_AzureNotCompiled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Engine.Backend = config.BackendAzure
	cfg.Azure.SubscriptionKey = "key"
	cfg.Azure.Region = "westeurope"

	engine, err := buildEngine(cfg)
	if !errors.Is(err, errAzureNotCompiled) {
		t.Fatalf("expected errAzureNotCompiled, got %v", err)
	}
	if engine != nil {
		t.Fatalf("expected nil engine, got %T", engine)
	}
}
