package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Load reads and parses an INI-like configuration file (§4.8), starting
// from Default() and overlaying every key the file sets. Unknown keys are
// silently ignored; unknown sections are parsed (their keys are just never
// matched) rather than rejected, matching the "skip blank/comment lines,
// switch section on a header, ignore unmatched keys" grammar.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse applies the grammar of §4.8 to r, starting from Default().
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	section := ""
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}
		if line[0] == '[' {
			end := strings.IndexByte(line, ']')
			if end < 0 {
				return Config{}, fmt.Errorf("config: line %d: unterminated section header", lineNo)
			}
			section = strings.ToLower(strings.TrimSpace(line[1:end]))
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			// Not blank, not a comment, not a header, not key=value: ignore
			// rather than fail, matching "unknown keys are silently
			// ignored" in spirit for malformed lines too.
			continue
		}
		key := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])
		applyKey(&cfg, section, key, value)
	}
	if err := scanner.Err(); err != nil {
		return Config{}, fmt.Errorf("config: read: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyKey(cfg *Config, section, key, value string) {
	switch section {
	case "general":
		switch key {
		case "min_bitrate":
			if v, ok := parseInt(value); ok {
				cfg.MinBitrateKbps = v
			}
		case "max_bitrate":
			if v, ok := parseInt(value); ok {
				cfg.MaxBitrateKbps = v
			}
		case "balancer":
			if value != "" {
				cfg.BalancerName = value
			}
		}
	case "srt":
		if key == "latency" {
			if v, ok := parseInt(value); ok {
				cfg.SRTLatencyMS = v
			}
		}
	case "adaptive":
		switch key {
		case "incr_step":
			if v, ok := parseInt(value); ok {
				cfg.AdaptiveIncrStepKbps = v
			}
		case "decr_step":
			if v, ok := parseInt(value); ok {
				cfg.AdaptiveDecrStepKbps = v
			}
		case "incr_interval":
			if v, ok := parseInt(value); ok {
				cfg.AdaptiveIncrIntervalMS = v
			}
		case "decr_interval":
			if v, ok := parseInt(value); ok {
				cfg.AdaptiveDecrIntervalMS = v
			}
		case "loss_threshold":
			if v, ok := parseFloat(value); ok {
				cfg.AdaptiveLossThreshold = v
			}
		}
	case "aimd":
		switch key {
		case "incr_step":
			if v, ok := parseInt(value); ok {
				cfg.AIMDIncrStepKbps = v
			}
		case "decr_mult":
			if v, ok := parseFloat(value); ok {
				cfg.AIMDDecrMult = v
			}
		case "incr_interval":
			if v, ok := parseInt(value); ok {
				cfg.AIMDIncrIntervalMS = v
			}
		case "decr_interval":
			if v, ok := parseInt(value); ok {
				cfg.AIMDDecrIntervalMS = v
			}
		}
	case "observability":
		switch key {
		case "prometheus_addr":
			cfg.Observability.PrometheusAddr = value
		case "overlay_mode":
			cfg.Observability.OverlayMode = OverlayMode(value)
		case "hdr_log_interval_ms":
			if v, ok := parseInt(value); ok {
				cfg.Observability.HDRLogIntervalMS = v
			}
		}
	}
	// Unrecognized sections and keys are silently ignored.
}

func parseInt(s string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Save serializes cfg back into the §4.8 grammar. parse(serialize(c)) == c
// for every normalized c: every key Save writes, Parse reads back.
func (c Config) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "[general]")
	fmt.Fprintf(bw, "min_bitrate = %d\n", c.MinBitrateKbps)
	fmt.Fprintf(bw, "max_bitrate = %d\n", c.MaxBitrateKbps)
	fmt.Fprintf(bw, "balancer = %s\n", c.BalancerName)
	fmt.Fprintln(bw, "[srt]")
	fmt.Fprintf(bw, "latency = %d\n", c.SRTLatencyMS)
	fmt.Fprintln(bw, "[adaptive]")
	fmt.Fprintf(bw, "incr_step = %d\n", c.AdaptiveIncrStepKbps)
	fmt.Fprintf(bw, "decr_step = %d\n", c.AdaptiveDecrStepKbps)
	fmt.Fprintf(bw, "incr_interval = %d\n", c.AdaptiveIncrIntervalMS)
	fmt.Fprintf(bw, "decr_interval = %d\n", c.AdaptiveDecrIntervalMS)
	fmt.Fprintf(bw, "loss_threshold = %v\n", c.AdaptiveLossThreshold)
	fmt.Fprintln(bw, "[aimd]")
	fmt.Fprintf(bw, "incr_step = %d\n", c.AIMDIncrStepKbps)
	fmt.Fprintf(bw, "decr_mult = %v\n", c.AIMDDecrMult)
	fmt.Fprintf(bw, "incr_interval = %d\n", c.AIMDIncrIntervalMS)
	fmt.Fprintf(bw, "decr_interval = %d\n", c.AIMDDecrIntervalMS)
	if c.Observability.PrometheusAddr != "" || c.Observability.OverlayMode != "" || c.Observability.HDRLogIntervalMS != 0 {
		fmt.Fprintln(bw, "[observability]")
		if c.Observability.PrometheusAddr != "" {
			fmt.Fprintf(bw, "prometheus_addr = %s\n", c.Observability.PrometheusAddr)
		}
		if c.Observability.OverlayMode != "" {
			fmt.Fprintf(bw, "overlay_mode = %s\n", c.Observability.OverlayMode)
		}
		if c.Observability.HDRLogIntervalMS != 0 {
			fmt.Fprintf(bw, "hdr_log_interval_ms = %d\n", c.Observability.HDRLogIntervalMS)
		}
	}
	return bw.Flush()
}
