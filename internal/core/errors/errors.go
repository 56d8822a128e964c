package errors

const (
	HttpInternalError         = "internal_error"
	HttpInvalidJsonError      = "invalid_json"
	HttpInvalidRequestError   = "invalid_request"
	HttpPlanningFailedError   = "planning_failed"
	HttpEntityNotFoundError   = "entity_not_found"
	HttpSchemaDefinitionError = "schema_definition_invalid"
	HttpSchemaDisabledError   = "schema_disabled"
	HttpUpstreamAuthError     = "upstream_auth"
	HttpUpstreamUnavailable   = "upstream_unavailable"
	HttpUpstreamRejected      = "upstream_rejected"
	HttpRequestCanceled       = "request_canceled"
)

// ErrorResponse is the error response body for every analytics endpoint.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
