package config

// DefaultAddr is the default listen address for the YAIL server.
const DefaultAddr = ":5556"

// DefaultLogLevel is used when neither file nor flag sets a level.
const DefaultLogLevel = "info"

const (
	DefaultMaxConnections     = 64
	DefaultIdleTimeoutSeconds = 300
	DefaultGenTimeoutSeconds  = 120
)
