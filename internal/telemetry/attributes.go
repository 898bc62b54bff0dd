// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the processor.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Event attributes
	EventIDKey     = "event.id"
	EventCameraKey = "event.camera"
	EventLabelKey  = "event.label"
	FrameTypeKey   = "frame.type"

	// Decision attributes
	DecisionVerdictKey = "decision.verdict"
	DecisionReasonKey  = "decision.reason"

	// Publish attributes
	PublishTopicKey   = "publish.topic"
	PublishAttemptKey = "publish.attempt"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// EventAttributes creates span attributes identifying one Frigate event.
func EventAttributes(id, camera, label, frameType string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if id != "" {
		attrs = append(attrs, attribute.String(EventIDKey, id))
	}
	if camera != "" {
		attrs = append(attrs, attribute.String(EventCameraKey, camera))
	}
	if label != "" {
		attrs = append(attrs, attribute.String(EventLabelKey, label))
	}
	if frameType != "" {
		attrs = append(attrs, attribute.String(FrameTypeKey, frameType))
	}
	return attrs
}

// DecisionAttributes creates span attributes for one rule evaluation.
func DecisionAttributes(verdict, reason string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(DecisionVerdictKey, verdict),
		attribute.String(DecisionReasonKey, reason),
	}
}

// PublishAttributes creates span attributes for one egress submission.
func PublishAttributes(topic string, attempt int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(PublishTopicKey, topic),
		attribute.Int(PublishAttemptKey, attempt),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
