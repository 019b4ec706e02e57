package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadLegacyBitrateFile reads the legacy two-line min/max bitrate file
// (§6): line 1 is the minimum bitrate in bits/s, line 2 the maximum, each
// a base-10 integer within [300000, 30000000]. Trailing whitespace is
// permitted; any other content is rejected.
func LoadLegacyBitrateFile(path string) (minBps, maxBps int64, err error) {
	f, ferr := os.Open(path)
	if ferr != nil {
		return 0, 0, fmt.Errorf("config: open legacy bitrate file %s: %w", path, ferr)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lines := make([]string, 0, 2)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), " \t\r"))
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, fmt.Errorf("config: read legacy bitrate file: %w", err)
	}
	if len(lines) != 2 {
		return 0, 0, fmt.Errorf("config: legacy bitrate file must have exactly two lines, got %d", len(lines))
	}

	minBps, err = parseLegacyBitrate(lines[0])
	if err != nil {
		return 0, 0, fmt.Errorf("config: legacy bitrate file line 1: %w", err)
	}
	maxBps, err = parseLegacyBitrate(lines[1])
	if err != nil {
		return 0, 0, fmt.Errorf("config: legacy bitrate file line 2: %w", err)
	}
	return minBps, maxBps, nil
}

func parseLegacyBitrate(line string) (int64, error) {
	v, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not a base-10 integer: %q", line)
	}
	if v < MinBitrateFloorBps || v > MaxBitrateCeilBps {
		return 0, fmt.Errorf("value %d out of range [%d, %d]", v, MinBitrateFloorBps, MaxBitrateCeilBps)
	}
	return v, nil
}
