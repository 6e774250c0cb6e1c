package config

// CORS defines the CORS middleware configuration
type CORS struct {
	// A list of origins a cross-domain request can be executed from.
	// '*' allows any origin
	AllowedOrigins []string `toml:"allowed_origins"`

	// A list of methods the client is allowed to use with cross-domain requests
	AllowedMethods []string `toml:"allowed_methods"`

	// A list of non-simple headers the client is allowed to use with
	// cross-domain requests
	AllowedHeaders []string `toml:"allowed_headers"`
}

// DefaultCORSConfig returns the default CORS configuration
func DefaultCORSConfig() *CORS {
	return &CORS{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}
}
