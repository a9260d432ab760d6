package authcommon

// Server and API versions reported by the version endpoint.
const (
	ServerVersion = "0.1.0"
	ApiVersion    = "v1"
)
