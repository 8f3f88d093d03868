package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-specrun/types"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "specrun"
)

var (
	Debug                bool = true
	validResults              = []types.Status{types.StatusPass, types.StatusFail, types.StatusError}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	// Registry holds every specrun collector and is served by the metrics server
	Registry = opmetrics.NewRegistry()
	factory  = promauto.With(Registry)

	errorsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	specificationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "specifications_total",
		Help:      "Count of executed specifications",
	}, []string{
		"run_id",
		"gate",
		"origin",
		"result",
	})

	stageFailuresTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "stage_failures_total",
		Help:      "Count of specification failures by lifecycle stage",
	}, []string{
		"stage",
	})

	expectationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "expectations_total",
		Help:      "Count of evaluated expectations",
	}, []string{
		"passed",
	})

	specificationDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "specification_duration_seconds",
		Help:      "Duration of a single specification run",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{
		"result",
	})

	runResults = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of a specification run",
	}, []string{
		"run_id",
		"result",
	})

	runSpecificationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_specifications_total",
		Help:      "Total number of specifications in a run",
	}, []string{
		"run_id",
	})

	runSpecificationsPassed = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_specifications_passed",
		Help:      "Number of passed specifications in a run",
	}, []string{
		"run_id",
	})

	runSpecificationsFailed = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_specifications_failed",
		Help:      "Number of failed specifications in a run",
	}, []string{
		"run_id",
	})

	runSpecificationsErrored = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_specifications_errored",
		Help:      "Number of specifications in a run that could not be attempted",
	}, []string{
		"run_id",
	})

	runDuration = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of a specification run",
	}, []string{
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordSpecification records the outcome of one specification within a run
func RecordSpecification(runID string, gate string, origin string, result types.Status, duration time.Duration) {
	if !isValidResult(result) {
		log.Error("RecordSpecification - invalid result", "result", result)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "specifications_total",
			"run_id", runID,
			"gate", gate,
			"origin", origin,
			"result", result)
	}
	specificationsTotal.WithLabelValues(runID, gate, origin, string(result)).Inc()
	specificationDuration.WithLabelValues(string(result)).Observe(duration.Seconds())
}

// RecordStageFailure counts a failure attributed to a lifecycle stage
func RecordStageFailure(stage types.Stage) {
	stageFailuresTotal.WithLabelValues(stage.String()).Inc()
}

// RecordExpectations counts evaluated expectations
func RecordExpectations(passed int, failed int) {
	expectationsTotal.WithLabelValues("true").Add(float64(passed))
	expectationsTotal.WithLabelValues("false").Add(float64(failed))
}

func RecordRun(
	runID string,
	result string,
	total int,
	passed int,
	failed int,
	errored int,
	duration time.Duration,
) {
	runResults.WithLabelValues(runID, result).Set(1)
	runSpecificationsTotal.WithLabelValues(runID).Add(float64(total))
	runSpecificationsPassed.WithLabelValues(runID).Add(float64(passed))
	runSpecificationsFailed.WithLabelValues(runID).Add(float64(failed))
	runSpecificationsErrored.WithLabelValues(runID).Add(float64(errored))
	runDuration.WithLabelValues(runID).Set(duration.Seconds())
}

func isValidResult(result types.Status) bool {
	return slices.Contains(validResults, result)
}
