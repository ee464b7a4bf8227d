// Package constants holds wire-level names shared across adapters.
package constants

const (
	ContentTypeJSON = "application/json"

	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderUserAgent     = "User-Agent"

	// UserAgent identifies this client to the Colab services
	UserAgent = "colabctl"

	// QueryParamToken carries the proxy token on Jupyter API requests
	QueryParamToken = "token"
)
