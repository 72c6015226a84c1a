package biometric

import "github.com/prometheus/client_golang/prometheus"

var (
	enrollTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "biometric", Subsystem: "enroll", Name: "total", Help: "Enrollment attempts by outcome."},
		[]string{"outcome"},
	)
	trainTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "biometric", Subsystem: "train", Name: "total", Help: "Training runs by modality and outcome."},
		[]string{"modality", "outcome"},
	)
	authTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "biometric", Subsystem: "auth", Name: "total", Help: "Authentication decisions by outcome."},
		[]string{"outcome"},
	)
	fusionConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: "biometric", Subsystem: "auth", Name: "confidence", Help: "Fused confidence distribution.", Buckets: prometheus.LinearBuckets(0, 0.1, 11)},
	)
	anomalyScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: "biometric", Subsystem: "anomaly", Name: "score", Help: "Anomaly screen score distribution.", Buckets: prometheus.LinearBuckets(0, 0.1, 11)},
	)
)

func init() {
	_ = prometheus.Register(enrollTotal)
	_ = prometheus.Register(trainTotal)
	_ = prometheus.Register(authTotal)
	_ = prometheus.Register(fusionConfidence)
	_ = prometheus.Register(anomalyScore)
}
