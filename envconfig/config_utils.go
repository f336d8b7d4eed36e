// config_utils.go - Utility-Funktionen und Export fuer Konfiguration
//
// Dieses Modul enthaelt:
// - Bool/BoolWithDefault: Boolean-Getter
// - String: String-Getter
// - Uint: Integer-Getter mit Default-Wert
// - EnvVar: Struktur fuer Environment-Variablen-Info
// - AsMap/Values: Export aller Konfigurationen
package envconfig

import (
	"fmt"
	"log/slog"
	"strconv"
)

// BoolWithDefault gibt eine Funktion zurueck, die einen Bool mit Default-Wert liest
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool gibt eine Funktion zurueck, die einen Bool liest (Default: false)
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// String gibt eine Funktion zurueck, die einen String liest
func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

// Uint gibt eine Funktion zurueck, die einen uint mit Default-Wert liest
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

var (
	// NumWorkers ist die Anzahl der Daten-Loader-Worker
	NumWorkers = Uint("ALIGNFORGE_NUM_WORKERS", 4)

	// NoStatus deaktiviert die Status-API waehrend des Trainings
	NoStatus = Bool("ALIGNFORGE_NOSTATUS")

	// KeepFailed behaelt Artefakte fehlgeschlagener Runs
	KeepFailed = Bool("ALIGNFORGE_KEEP_FAILED")
)

// EnvVar repraesentiert eine Environment-Variable mit Metadaten
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen als Map zurueck
// Enthaelt Namen, aktuelle Werte und Beschreibungen
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"ALIGNFORGE_DEBUG":       {"ALIGNFORGE_DEBUG", LogLevel(), "Show additional debug information (e.g. ALIGNFORGE_DEBUG=1)"},
		"ALIGNFORGE_HOST":        {"ALIGNFORGE_HOST", Host(), "IP address for the status API (default 127.0.0.1:7860)"},
		"ALIGNFORGE_RUNS":        {"ALIGNFORGE_RUNS", Runs(), "The path to the runs directory"},
		"ALIGNFORGE_CACHE":       {"ALIGNFORGE_CACHE", Cache(), "The path to the checkpoint cache directory"},
		"ALIGNFORGE_NUM_WORKERS": {"ALIGNFORGE_NUM_WORKERS", NumWorkers(), "Number of data loader workers (default 4)"},
		"ALIGNFORGE_NOSTATUS":    {"ALIGNFORGE_NOSTATUS", NoStatus(), "Do not serve the status API during training"},
		"ALIGNFORGE_KEEP_FAILED": {"ALIGNFORGE_KEEP_FAILED", KeepFailed(), "Keep artifacts of failed runs"},
	}
}

// Values gibt alle Konfigurationswerte als String-Map zurueck
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
