package ingest

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sosodev/duration"
)

// ConfigFromEnv parses a pipeline configuration from well-known environment
// variables. Durations are ISO 8601 (for example PT0.012S). Unset variables
// leave the corresponding Config field zero, which means the built-in default
// applies; it is not an error for all of them to be missing.
func ConfigFromEnv() (Config, error) {
	var cfg Config

	for _, env := range os.Environ() {
		idx := strings.IndexByte(env, '=')
		if idx < 0 {
			continue
		}
		key := env[:idx]
		val := env[idx+1:]

		var err error
		switch key {
		case "MMS_IDLE_VALUE":
			cfg.IdleValue, err = parseCount(val, "idle value")

		case "MMS_DEFAULT_SAMPLE_INTERVAL":
			cfg.DefaultSampleInterval, err = parseISODuration(val, "default sample interval")

		case "MMS_MIN_SAMPLE_INTERVAL":
			cfg.MinSampleInterval, err = parseISODuration(val, "minimum sample interval")

		case "MMS_MAX_SAMPLE_INTERVAL":
			cfg.MaxSampleInterval, err = parseISODuration(val, "maximum sample interval")

		case "MMS_DUP_WINDOW":
			cfg.DupWindow, err = parseISODuration(val, "duplicate window")

		case "MMS_DEBOUNCE_CAP":
			cfg.DebounceCap, err = parseCount(val, "debounce capacity")

		case "MMS_PROCESS_INTERVAL":
			cfg.ProcessInterval, err = parseISODuration(val, "process interval")

		case "MMS_BATCH_PER_TICK":
			cfg.BatchPerTick, err = parseCount(val, "batch per tick")

		case "MMS_RAW_CAP":
			cfg.RawCap, err = parseCount(val, "raw queue capacity")

		case "MMS_PENDING_CAP":
			cfg.PendingCap, err = parseCount(val, "pending queue capacity")

		case "MMS_DRAIN_INTERVAL":
			cfg.DrainInterval, err = parseISODuration(val, "drain interval")

		case "MMS_MAX_DRAIN_PER_TICK":
			cfg.MaxDrainPerTick, err = parseCount(val, "max drain per tick")

		case "MMS_DRAIN_CHUNK_SIZE":
			cfg.DrainChunkSize, err = parseCount(val, "drain chunk size")

		case "MMS_BIN_WIDTH":
			cfg.BinWidth, err = parseISODuration(val, "bin width")

		case "MMS_LIVE_CAP":
			cfg.LiveCap, err = parseCount(val, "live store capacity")

		case "MMS_SUBSCRIBER_BUFFER":
			cfg.SubscriberBuffer, err = parseCount(val, "subscriber buffer")
		}
		if err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func parseISODuration(val, name string) (time.Duration, error) {
	d, err := duration.Parse(val)
	if err != nil {
		return 0, &InvalidArgumentError{
			message: "could not parse " + name,
			wrapped: err,
		}
	}
	return d.ToTimeDuration(), nil
}

func parseCount(val, name string) (int, error) {
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, &InvalidArgumentError{
			message: "could not parse " + name,
			wrapped: err,
		}
	}
	return n, nil
}
