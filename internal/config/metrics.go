package config

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	configMetricsOnce sync.Once
	configCounter     metric.Int64Counter
)

// recordConfigLoad counts one Load call with the number of rule violations
// that rejected it.
func recordConfigLoad(ctx context.Context, profile, driver, outcome string, err error) {
	configMetricsOnce.Do(func() {
		counter, cerr := otel.Meter("credential-session-core").Int64Counter("config.load.events")
		if cerr == nil {
			configCounter = counter
		}
	})
	if configCounter == nil {
		return
	}
	configCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("profile", normalizeConfigProfile(profile)),
		attribute.String("driver", labelOrUnknown(driver)),
		attribute.String("outcome", outcome),
		attribute.String("error_class", classifyConfigLoadError(err)),
		attribute.Int("violations", countViolations(err)),
	))
}

// normalizeConfigProfile folds common APP_ENV spellings onto development,
// test, staging or production. Other values pass through lowercased.
func normalizeConfigProfile(profile string) string {
	v := strings.ToLower(strings.TrimSpace(profile))
	switch v {
	case "":
		return "unknown"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "dev", "development", "local":
		return "development"
	case "test", "testing", "ci":
		return "test"
	}
	return v
}

func labelOrUnknown(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "unknown"
	}
	return v
}

func classifyConfigLoadError(err error) string {
	if err == nil {
		return "none"
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.HasPrefix(msg, "validate config:"):
		return "validation"
	case strings.HasPrefix(msg, "parse env:"):
		return "parse"
	default:
		return "load"
	}
}

// countViolations reports how many errors a joined validation error holds.
func countViolations(err error) int {
	if err == nil {
		return 0
	}
	for {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			return len(joined.Unwrap())
		}
		next := errors.Unwrap(err)
		if next == nil {
			return 1
		}
		err = next
	}
}
