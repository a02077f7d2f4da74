package metrics

import (
	"fmt"
	"sync"
	"time"
)

// Metrics holds application metrics
type Metrics struct {
	mu sync.RWMutex

	// Request metrics
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64

	// Endpoint metrics
	EndpointRequests map[string]int64
	EndpointErrors   map[string]int64
	EndpointLatency  map[string][]time.Duration

	// Service metrics
	ServiceCalls   map[string]int64
	ServiceErrors  map[string]int64
	ServiceLatency map[string][]time.Duration

	// Call metrics
	CallsStarted   int64
	CallsCompleted map[string]int64 // by final status
	ActiveCalls    int64
	TurnsProcessed int64
	TurnLatency    []time.Duration
	TurnErrors     int64

	// Tool metrics
	ToolInvocations map[string]int64
	ToolErrors      map[string]int64

	// Synthesis metrics
	SynthesisFailures int64

	// Circuit breaker metrics
	CircuitBreakerState    map[string]string
	CircuitBreakerFailures map[string]int64

	// Start time
	StartTime time.Time
}

var globalMetrics = &Metrics{
	EndpointRequests:       make(map[string]int64),
	EndpointErrors:         make(map[string]int64),
	EndpointLatency:        make(map[string][]time.Duration),
	ServiceCalls:           make(map[string]int64),
	ServiceErrors:          make(map[string]int64),
	ServiceLatency:         make(map[string][]time.Duration),
	CallsCompleted:         make(map[string]int64),
	ToolInvocations:        make(map[string]int64),
	ToolErrors:             make(map[string]int64),
	CircuitBreakerState:    make(map[string]string),
	CircuitBreakerFailures: make(map[string]int64),
	StartTime:              time.Now(),
}

// RecordRequest records a request
func RecordRequest(endpoint string, success bool, latency time.Duration) {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()

	globalMetrics.TotalRequests++
	if success {
		globalMetrics.SuccessfulRequests++
	} else {
		globalMetrics.FailedRequests++
		globalMetrics.EndpointErrors[endpoint]++
	}

	globalMetrics.EndpointRequests[endpoint]++

	// Keep only last 100 latency measurements per endpoint
	if len(globalMetrics.EndpointLatency[endpoint]) >= 100 {
		globalMetrics.EndpointLatency[endpoint] = globalMetrics.EndpointLatency[endpoint][1:]
	}
	globalMetrics.EndpointLatency[endpoint] = append(globalMetrics.EndpointLatency[endpoint], latency)
}

// RecordServiceCall records an upstream provider call
func RecordServiceCall(service string, success bool, latency time.Duration) {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()

	globalMetrics.ServiceCalls[service]++
	if !success {
		globalMetrics.ServiceErrors[service]++
	}

	// Keep only last 100 latency measurements per service
	if len(globalMetrics.ServiceLatency[service]) >= 100 {
		globalMetrics.ServiceLatency[service] = globalMetrics.ServiceLatency[service][1:]
	}
	globalMetrics.ServiceLatency[service] = append(globalMetrics.ServiceLatency[service], latency)
}

// RecordCallStarted records a new media stream attaching to a call
func RecordCallStarted() {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()

	globalMetrics.CallsStarted++
	globalMetrics.ActiveCalls++
}

// RecordCallEnded records a call's final carrier status
func RecordCallEnded(status string) {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()

	globalMetrics.CallsCompleted[status]++
}

// RecordStreamDetached records a session leaving the registry. Callers
// gate this on the actual eviction so retried callbacks cannot
// double-decrement.
func RecordStreamDetached() {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()

	if globalMetrics.ActiveCalls > 0 {
		globalMetrics.ActiveCalls--
	}
}

// RecordTurn records one processed caller turn
func RecordTurn(success bool, latency time.Duration) {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()

	globalMetrics.TurnsProcessed++
	if !success {
		globalMetrics.TurnErrors++
	}

	if len(globalMetrics.TurnLatency) >= 100 {
		globalMetrics.TurnLatency = globalMetrics.TurnLatency[1:]
	}
	globalMetrics.TurnLatency = append(globalMetrics.TurnLatency, latency)
}

// RecordToolInvocation records a tool dispatch
func RecordToolInvocation(tool string, success bool) {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()

	globalMetrics.ToolInvocations[tool]++
	if !success {
		globalMetrics.ToolErrors[tool]++
	}
}

// RecordSynthesisFailure records a TTS failure after retries
func RecordSynthesisFailure() {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()

	globalMetrics.SynthesisFailures++
}

// ActiveCallCount returns the number of calls currently in the registry
func ActiveCallCount() int64 {
	globalMetrics.mu.RLock()
	defer globalMetrics.mu.RUnlock()
	return globalMetrics.ActiveCalls
}

// UpdateCircuitBreaker updates circuit breaker metrics
func UpdateCircuitBreaker(service, state string, failures int64) {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()

	globalMetrics.CircuitBreakerState[service] = state
	globalMetrics.CircuitBreakerFailures[service] = failures
}

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	globalMetrics.mu.RLock()
	defer globalMetrics.mu.RUnlock()

	// Calculate average latencies
	endpointAvgLatency := make(map[string]float64)
	for endpoint, latencies := range globalMetrics.EndpointLatency {
		if len(latencies) > 0 {
			var sum time.Duration
			for _, l := range latencies {
				sum += l
			}
			endpointAvgLatency[endpoint] = sum.Seconds() / float64(len(latencies))
		}
	}

	serviceAvgLatency := make(map[string]float64)
	for service, latencies := range globalMetrics.ServiceLatency {
		if len(latencies) > 0 {
			var sum time.Duration
			for _, l := range latencies {
				sum += l
			}
			serviceAvgLatency[service] = sum.Seconds() / float64(len(latencies))
		}
	}

	var turnAvgLatency float64
	if len(globalMetrics.TurnLatency) > 0 {
		var sum time.Duration
		for _, l := range globalMetrics.TurnLatency {
			sum += l
		}
		turnAvgLatency = sum.Seconds() / float64(len(globalMetrics.TurnLatency))
	}

	uptime := time.Since(globalMetrics.StartTime)

	return map[string]interface{}{
		"uptime_seconds": uptime.Seconds(),
		"requests": map[string]interface{}{
			"total":      globalMetrics.TotalRequests,
			"successful": globalMetrics.SuccessfulRequests,
			"failed":     globalMetrics.FailedRequests,
		},
		"endpoints": map[string]interface{}{
			"requests":            globalMetrics.EndpointRequests,
			"errors":              globalMetrics.EndpointErrors,
			"latency_avg_seconds": endpointAvgLatency,
		},
		"services": map[string]interface{}{
			"calls":               globalMetrics.ServiceCalls,
			"errors":              globalMetrics.ServiceErrors,
			"latency_avg_seconds": serviceAvgLatency,
		},
		"calls": map[string]interface{}{
			"started":   globalMetrics.CallsStarted,
			"active":    globalMetrics.ActiveCalls,
			"completed": globalMetrics.CallsCompleted,
		},
		"turns": map[string]interface{}{
			"processed":           globalMetrics.TurnsProcessed,
			"errors":              globalMetrics.TurnErrors,
			"latency_avg_seconds": turnAvgLatency,
		},
		"tools": map[string]interface{}{
			"invocations": globalMetrics.ToolInvocations,
			"errors":      globalMetrics.ToolErrors,
		},
		"synthesis": map[string]interface{}{
			"failures": globalMetrics.SynthesisFailures,
		},
		"circuit_breakers": map[string]interface{}{
			"state":    globalMetrics.CircuitBreakerState,
			"failures": globalMetrics.CircuitBreakerFailures,
		},
	}
}

// GetPrometheusMetrics returns metrics in Prometheus format
func GetPrometheusMetrics() string {
	metrics := GetMetrics()
	var output string

	// Uptime
	output += "# HELP voice_uptime_seconds Server uptime in seconds\n"
	output += "# TYPE voice_uptime_seconds gauge\n"
	output += fmt.Sprintf("voice_uptime_seconds %.2f\n", metrics["uptime_seconds"].(float64))

	// Requests
	reqs := metrics["requests"].(map[string]interface{})
	output += "# HELP voice_requests_total Total number of requests\n"
	output += "# TYPE voice_requests_total counter\n"
	output += fmt.Sprintf("voice_requests_total{status=\"total\"} %d\n", reqs["total"].(int64))
	output += fmt.Sprintf("voice_requests_total{status=\"successful\"} %d\n", reqs["successful"].(int64))
	output += fmt.Sprintf("voice_requests_total{status=\"failed\"} %d\n", reqs["failed"].(int64))

	// Calls
	calls := metrics["calls"].(map[string]interface{})
	output += "# HELP voice_calls_started_total Media streams attached\n"
	output += "# TYPE voice_calls_started_total counter\n"
	output += fmt.Sprintf("voice_calls_started_total %d\n", calls["started"].(int64))
	output += "# HELP voice_calls_active Calls currently in the registry\n"
	output += "# TYPE voice_calls_active gauge\n"
	output += fmt.Sprintf("voice_calls_active %d\n", calls["active"].(int64))
	completed := calls["completed"].(map[string]int64)
	output += "# HELP voice_calls_completed_total Calls by final status\n"
	output += "# TYPE voice_calls_completed_total counter\n"
	for status, count := range completed {
		output += fmt.Sprintf("voice_calls_completed_total{status=\"%s\"} %d\n", status, count)
	}

	// Turns
	turns := metrics["turns"].(map[string]interface{})
	output += "# HELP voice_turns_processed_total Caller turns processed\n"
	output += "# TYPE voice_turns_processed_total counter\n"
	output += fmt.Sprintf("voice_turns_processed_total %d\n", turns["processed"].(int64))
	output += "# HELP voice_turn_errors_total Turns that ended in the apology path\n"
	output += "# TYPE voice_turn_errors_total counter\n"
	output += fmt.Sprintf("voice_turn_errors_total %d\n", turns["errors"].(int64))

	// Tools
	tools := metrics["tools"].(map[string]interface{})
	toolInvocations := tools["invocations"].(map[string]int64)
	output += "# HELP voice_tool_invocations_total Tool dispatches by tool\n"
	output += "# TYPE voice_tool_invocations_total counter\n"
	for tool, count := range toolInvocations {
		output += fmt.Sprintf("voice_tool_invocations_total{tool=\"%s\"} %d\n", tool, count)
	}

	// Synthesis failures
	synth := metrics["synthesis"].(map[string]interface{})
	output += "# HELP voice_synthesis_failures_total TTS failures after retry\n"
	output += "# TYPE voice_synthesis_failures_total counter\n"
	output += fmt.Sprintf("voice_synthesis_failures_total %d\n", synth["failures"].(int64))

	// Service calls
	services := metrics["services"].(map[string]interface{})
	serviceCalls := services["calls"].(map[string]int64)
	output += "# HELP voice_service_calls_total Total calls per upstream service\n"
	output += "# TYPE voice_service_calls_total counter\n"
	for service, count := range serviceCalls {
		output += fmt.Sprintf("voice_service_calls_total{service=\"%s\"} %d\n", service, count)
	}

	return output
}
