package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/liuscraft/voicecontrol/internal/audio/source"
	"github.com/liuscraft/voicecontrol/internal/config"
	"github.com/liuscraft/voicecontrol/internal/engine/dashscope"
	"github.com/liuscraft/voicecontrol/internal/engine/fake"
	"github.com/liuscraft/voicecontrol/internal/logging"
	"github.com/liuscraft/voicecontrol/internal/recognition"
	"github.com/liuscraft/voicecontrol/internal/skin"
	"github.com/liuscraft/voicecontrol/internal/voicecontrol"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "config file path")
	skinPath := flag.String("skin", "", "skin file path (overrides host.skin)")
	flag.Parse()

	appConfig, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := appConfig.ValidateBackend(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Init(logging.Config{
		Level:  appConfig.Logging.Level,
		Format: appConfig.Logging.Format,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	logging.SetTraceID(logging.NewTraceID())

	logging.Infof("========================================")
	logging.Infof("      VoiceControl Starting...         ")
	logging.Infof("========================================")

	if *skinPath != "" {
		appConfig.Host.Skin = *skinPath
	}
	skinFile, err := skin.Load(appConfig.Host.Skin)
	if err != nil {
		logging.Fatalf("Failed to load skin: %v", err)
	}
	logging.Infof("Skin %s loaded from %s", skinFile.Name, skinFile.Path())

	engine, err := buildEngine(appConfig)
	if err != nil {
		logging.Fatalf("Failed to create engine: %v", err)
	}
	logging.Infof("Recognition engine: %s", engine.Name())

	plugin := voicecontrol.NewPlugin(engine, voicecontrol.Config{
		Capacity:  appConfig.Session.Capacity,
		QueueSize: appConfig.Session.QueueSize,
	})
	runner := skin.NewRunner(plugin, skinFile, time.Duration(appConfig.Host.TickMs)*time.Millisecond, os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logging.Infof("Received interrupt signal, unloading skin...")
		// Run 返回前会先销毁子 measure，再释放父 measure 的识别会话
		cancel()
	}()

	logging.Infof("VoiceControl is running. Press Ctrl+C to stop.")
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Errorf("Runner stopped: %v", err)
	}
	logging.Infof("VoiceControl stopped.")
}

func buildEngine(cfg *config.AppConfig) (recognition.Engine, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Engine.Backend)) {
	case config.BackendFake, "":
		script, err := fake.ParseScript(cfg.Fake.Script)
		if err != nil {
			return nil, err
		}
		return fake.New().WithScript(script, time.Duration(cfg.Fake.IntervalMs)*time.Millisecond), nil
	case config.BackendDashScope:
		engine, err := dashscope.New(dashscope.Config{
			APIKey:     cfg.DashScope.APIKey,
			Endpoint:   cfg.DashScope.Endpoint,
			Model:      cfg.DashScope.Model,
			SampleRate: cfg.DashScope.SampleRate,
			Audio: source.Config{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				BufferSize:  cfg.Audio.BufferSize,
				DeviceName:  cfg.Audio.InputDevice,
				HighLatency: cfg.Audio.HighLatency,
			},
		})
		if err != nil {
			return nil, err
		}
		return engine, nil
	case config.BackendAzure:
		return newAzureEngine(cfg.Azure)
	default:
		return nil, fmt.Errorf("unknown engine backend %q", cfg.Engine.Backend)
	}
}
