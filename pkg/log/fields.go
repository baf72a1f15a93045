package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor (matches pkg/middleware/auth.go keys)
	FieldUserID   = "user_id"
	FieldUsername = "username"

	// Live room
	FieldRoomID       = "room_id"
	FieldConnectionID = "connection_id"
	FieldRole         = "role"
	FieldEvent        = "event"

	// Service
	FieldService  = "service"
	FieldInstance = "instance_id"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
