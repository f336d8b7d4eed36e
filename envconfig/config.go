// config.go - Haupt-Konfigurationsfunktionen fuer alignforge
//
// Dieses Modul enthaelt:
// - Host: Gibt Scheme und Host der Status-API zurueck (ALIGNFORGE_HOST)
// - Runs: Gibt das Run-Verzeichnis zurueck (ALIGNFORGE_RUNS)
// - Cache: Gibt das Checkpoint-Cache-Verzeichnis zurueck (ALIGNFORGE_CACHE)
// - LogLevel: Gibt Log-Level zurueck (ALIGNFORGE_DEBUG)
//
// Weitere Konfigurationen sind ausgelagert:
// - config_utils.go: Utility-Funktionen und AsMap/Values
package envconfig

import (
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Host gibt Scheme und Host der Status-API zurueck
// Konfigurierbar via ALIGNFORGE_HOST
// Default: http://127.0.0.1:7860
func Host() *url.URL {
	defaultPort := "7860"

	s := strings.TrimSpace(Var("ALIGNFORGE_HOST"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = "127.0.0.1", defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// Runs gibt das Verzeichnis fuer Run-Artefakte zurueck
// Konfigurierbar via ALIGNFORGE_RUNS
// Default: $HOME/.alignforge/runs
func Runs() string {
	if s := Var("ALIGNFORGE_RUNS"); s != "" {
		return s
	}

	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}

	return filepath.Join(home, ".alignforge", "runs")
}

// Cache gibt das Checkpoint-Cache-Verzeichnis zurueck
// Konfigurierbar via ALIGNFORGE_CACHE
// Default: $HOME/.alignforge/cache
func Cache() string {
	if s := Var("ALIGNFORGE_CACHE"); s != "" {
		return s
	}

	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}

	return filepath.Join(home, ".alignforge", "cache")
}

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via ALIGNFORGE_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("ALIGNFORGE_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
