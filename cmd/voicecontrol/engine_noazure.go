//go:build !azure

package main

import (
	"errors"

	"github.com/liuscraft/voicecontrol/internal/config"
	"github.com/liuscraft/voicecontrol/internal/recognition"
)

var errAzureNotCompiled = errors.New("azure backend not compiled in (rebuild with -tags azure)")

func newAzureEngine(config.AzureConfig) (recognition.Engine, error) {
	return nil, errAzureNotCompiled
}
