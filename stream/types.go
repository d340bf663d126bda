// Package stream drives fixed-rate, bounded-concurrency attestation
// traffic against the verifying collector and measures every phase of it.
package stream

import "time"

// SensorStream describes one streaming run: which sensors emit, how fast,
// and for how long. A run ends when the duration expires, the target
// request count is reached, or the context is cancelled, whichever comes
// first.
type SensorStream struct {
	SensorIDs   []string
	FrequencyHz int
	Duration    time.Duration
	// TargetCount optionally ends the run once the total number of
	// requests across all sensors reaches it. Every iteration sends one
	// request per sensor, so the total is rounded up to a whole number of
	// iterations and can exceed TargetCount by up to len(SensorIDs)-1.
	// Zero means duration-bound only.
	TargetCount int
}

// Request is one sample on its way to the attestor.
type Request struct {
	SensorID  string  `json:"sensor_id"`
	Value     float64 `json:"value"`
	Timestamp float64 `json:"timestamp"`
	RequestID string  `json:"request_id"`
}

// Response is the fully resolved outcome of one sample: attestation and
// transport timings, the collector's verdict, and the recovered-value
// accuracy where the scheme returns one. Responses complete out of order
// and are correlated by RequestID.
type Response struct {
	RequestID              string   `json:"request_id"`
	SensorID               string   `json:"sensor_id"`
	Success                bool     `json:"success"`
	OriginalValue          float64  `json:"original_value"`
	RecoveredValue         *float64 `json:"recovered_value,omitempty"`
	EncryptionTimeMS       float64  `json:"encryption_time_ms"`
	ResponseTimeMS         float64  `json:"response_time_ms"`
	ServerProcessingTimeMS *float64 `json:"server_processing_time_ms,omitempty"`
	ErrorMessage           string   `json:"error_message,omitempty"`
	AccuracyError          *float64 `json:"accuracy_error,omitempty"`

	// ScheduleDeviationMS is how late this sample's dispatch ran
	// relative to its absolute target send time t_i.
	ScheduleDeviationMS float64 `json:"schedule_deviation_ms"`
}

// Result aggregates one finished stream.
type Result struct {
	Total               int           `json:"total"`
	Successful          int           `json:"successful"`
	Failed              int           `json:"failed"`
	AvgEncryptionMS     float64       `json:"avg_encryption_ms"`
	AvgResponseMS       float64       `json:"avg_response_ms"`
	AvgAccuracyError    *float64      `json:"avg_accuracy_error,omitempty"`
	ThroughputOpsPerSec float64       `json:"throughput_ops_per_sec"`
	ActualDuration      time.Duration `json:"-"`
	// ScheduleLagMS accumulates how far dispatch fell behind the
	// absolute schedule over the whole run.
	ScheduleLagMS float64    `json:"schedule_lag_ms"`
	Responses     []Response `json:"-"`
}

// aggregate folds the raw responses into a Result.
func aggregate(responses []Response, elapsed time.Duration, lagMS float64) *Result {
	r := &Result{
		Total:          len(responses),
		ActualDuration: elapsed,
		ScheduleLagMS:  lagMS,
		Responses:      responses,
	}
	var encSum, respSum, accSum float64
	accN := 0
	for i := range responses {
		if responses[i].Success {
			r.Successful++
			encSum += responses[i].EncryptionTimeMS
			respSum += responses[i].ResponseTimeMS
		} else {
			r.Failed++
		}
		if responses[i].AccuracyError != nil {
			accSum += *responses[i].AccuracyError
			accN++
		}
	}
	if r.Successful > 0 {
		r.AvgEncryptionMS = encSum / float64(r.Successful)
		r.AvgResponseMS = respSum / float64(r.Successful)
	}
	if accN > 0 {
		avg := accSum / float64(accN)
		r.AvgAccuracyError = &avg
	}
	if secs := elapsed.Seconds(); secs > 0 {
		r.ThroughputOpsPerSec = float64(r.Successful) / secs
	}
	return r
}
