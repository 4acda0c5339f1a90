package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iedon/gameping-agent/latency"
	"github.com/iedon/gameping-agent/monitor"
	"github.com/iedon/gameping-agent/probe"
)

type monitorConfig struct {
	ProcessName string `json:"processName" yaml:"processName"` // Case-insensitive substring of the game process name
	Interval    int    `json:"interval" yaml:"interval"`       // Poll interval in milliseconds
	HistorySize int    `json:"historySize" yaml:"historySize"` // Number of samples kept for the average
}

type probeConfig struct {
	Timeout    int  `json:"timeout" yaml:"timeout"`       // Echo reply timeout in milliseconds
	Privileged bool `json:"privileged" yaml:"privileged"` // Raw ICMP sockets, needs root or CAP_NET_RAW
}

type loggerConfig struct {
	File           string `json:"file" yaml:"file"`
	MaxSize        int    `json:"maxSize" yaml:"maxSize"` // megabytes
	MaxBackups     int    `json:"maxBackups" yaml:"maxBackups"`
	MaxAge         int    `json:"maxAge" yaml:"maxAge"` // days
	Compress       bool   `json:"compress" yaml:"compress"`
	ConsoleLogging bool   `json:"consoleLogging" yaml:"consoleLogging"` // Interleaves with the terminal display
	Debug          bool   `json:"debug" yaml:"debug"`                   // Log every probe result
}

type serverConfig struct {
	Listen       string `json:"listen" yaml:"listen"`             // Empty disables the status listener
	ListenerType string `json:"listenerType" yaml:"listenerType"` // tcp or unix
}

type geoIPConfig struct {
	MaxMindGeoLiteCountryMmdbPath string `json:"maxMindGeoLiteCountryMmdbPath" yaml:"maxMindGeoLiteCountryMmdbPath"`
}

type displayConfig struct {
	Output string `json:"output" yaml:"output"` // text or json
}

type config struct {
	Monitor monitorConfig `json:"monitor" yaml:"monitor"`
	Probe   probeConfig   `json:"probe" yaml:"probe"`
	Logger  loggerConfig  `json:"logger" yaml:"logger"`
	Server  serverConfig  `json:"server" yaml:"server"`
	GeoIP   geoIPConfig   `json:"geoip" yaml:"geoip"`
	Display displayConfig `json:"display" yaml:"display"`
}

const (
	outputText = "text"
	outputJSON = "json"
)

func defaultConfig() *config {
	return &config{
		Monitor: monitorConfig{
			ProcessName: monitor.DefaultProcessName,
			Interval:    int(monitor.DefaultInterval / time.Millisecond),
			HistorySize: latency.DefaultCapacity,
		},
		Probe: probeConfig{
			Timeout:    int(probe.DefaultTimeout / time.Millisecond),
			Privileged: probe.DefaultPrivileged,
		},
		Logger: loggerConfig{
			File:       "gameping.log",
			MaxSize:    10,
			MaxBackups: 10,
			MaxAge:     30,
			Compress:   true,
		},
		Server: serverConfig{
			ListenerType: "tcp",
		},
		Display: displayConfig{
			Output: outputText,
		},
	}
}

// loadConfig reads filename over the defaults. An empty filename yields the defaults.
// Files ending in .yaml or .yml are decoded as YAML, everything else as JSON.
func loadConfig(filename string) (*config, error) {
	cfg := defaultConfig()
	if filename == "" {
		return cfg, nil
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.NewDecoder(file).Decode(cfg)
	default:
		err = json.NewDecoder(file).Decode(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}

	return cfg, nil
}

func (c *config) validate() error {
	if strings.TrimSpace(c.Monitor.ProcessName) == "" {
		return fmt.Errorf("monitor.processName must not be empty")
	}
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive, got %d", c.Monitor.Interval)
	}
	if c.Monitor.HistorySize <= 0 {
		return fmt.Errorf("monitor.historySize must be positive, got %d", c.Monitor.HistorySize)
	}
	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("probe.timeout must be positive, got %d", c.Probe.Timeout)
	}
	switch c.Display.Output {
	case outputText, outputJSON:
	default:
		return fmt.Errorf("unsupported display.output: %s (supported: text, json)", c.Display.Output)
	}
	return nil
}

func (c *config) monitorOptions() monitor.Config {
	return monitor.Config{
		ProcessName: c.Monitor.ProcessName,
		Interval:    time.Duration(c.Monitor.Interval) * time.Millisecond,
		HistorySize: c.Monitor.HistorySize,
		Debug:       c.Logger.Debug,
	}
}

func (c *config) probeOptions() probe.Options {
	return probe.Options{
		Timeout:    time.Duration(c.Probe.Timeout) * time.Millisecond,
		Privileged: c.Probe.Privileged,
	}
}
