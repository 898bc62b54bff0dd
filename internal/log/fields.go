package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldEventID   = "event_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Detection fields
	FieldCamera    = "camera"
	FieldLabel     = "label"
	FieldZones     = "zones"
	FieldFrameType = "frame_type"

	// State fields
	FieldStatus    = "status"
	FieldOldStatus = "old_status"
	FieldNewStatus = "new_status"
	FieldReason    = "reason"

	// Transport fields
	FieldTopic  = "topic"
	FieldBroker = "broker"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
)
