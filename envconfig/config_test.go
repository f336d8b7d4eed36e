package envconfig

import (
	"log/slog"
	"testing"
)

func TestHost(t *testing.T) {
	cases := map[string]struct {
		value  string
		expect string
	}{
		"empty":               {"", "127.0.0.1:7860"},
		"only address":        {"1.2.3.4", "1.2.3.4:7860"},
		"only port":           {":4321", ":4321"},
		"address and port":    {"1.2.3.4:4321", "1.2.3.4:4321"},
		"hostname":            {"example.com", "example.com:7860"},
		"hostname and port":   {"example.com:4321", "example.com:4321"},
		"zero port":           {":0", ":0"},
		"too large port":      {":66000", ":7860"},
		"too small port":      {":-1", ":7860"},
		"ipv6 localhost":      {"[::1]", "[::1]:7860"},
		"ipv6 world open":     {"[::]", "[::]:7860"},
		"ipv6 no brackets":    {"::1", "[::1]:7860"},
		"extra space":         {" 1.2.3.4 ", "1.2.3.4:7860"},
		"extra quotes":        {"\"1.2.3.4\"", "1.2.3.4:7860"},
		"extra space+quotes":  {" \" 1.2.3.4 \" ", "1.2.3.4:7860"},
		"extra single quotes": {"'1.2.3.4'", "1.2.3.4:7860"},
		"http":                {"http://1.2.3.4", "1.2.3.4:80"},
		"http port":           {"http://1.2.3.4:4321", "1.2.3.4:4321"},
		"https":               {"https://1.2.3.4", "1.2.3.4:443"},
		"https port":          {"https://1.2.3.4:4321", "1.2.3.4:4321"},
	}

	for name, tt := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("ALIGNFORGE_HOST", tt.value)
			if host := Host(); host.Host != tt.expect {
				t.Errorf("%s: expected %s, got %s", name, tt.expect, host.Host)
			}
		})
	}
}

func TestLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"false": slog.LevelInfo,
		"0":     slog.LevelInfo,
		"true":  slog.LevelDebug,
		"1":     slog.LevelDebug,
		"2":     slog.Level(-8),
	}

	for value, expect := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("ALIGNFORGE_DEBUG", value)
			if level := LogLevel(); level != expect {
				t.Errorf("ALIGNFORGE_DEBUG=%q: expected %v, got %v", value, expect, level)
			}
		})
	}
}

func TestRuns(t *testing.T) {
	t.Setenv("ALIGNFORGE_RUNS", "/tmp/alignforge-runs")
	if got := Runs(); got != "/tmp/alignforge-runs" {
		t.Errorf("Runs() = %q, expected /tmp/alignforge-runs", got)
	}
}

func TestBool(t *testing.T) {
	cases := map[string]bool{
		"":      false,
		"0":     false,
		"false": false,
		"1":     true,
		"true":  true,
		"on":    true,
	}

	for value, expect := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("ALIGNFORGE_NOSTATUS", value)
			if got := NoStatus(); got != expect {
				t.Errorf("ALIGNFORGE_NOSTATUS=%q: expected %v, got %v", value, expect, got)
			}
		})
	}
}

func TestNumWorkers(t *testing.T) {
	cases := map[string]uint{
		"":    4,
		"2":   2,
		"0":   0,
		"abc": 4,
	}

	for value, expect := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("ALIGNFORGE_NUM_WORKERS", value)
			if got := NumWorkers(); got != expect {
				t.Errorf("ALIGNFORGE_NUM_WORKERS=%q: expected %d, got %d", value, expect, got)
			}
		})
	}
}
