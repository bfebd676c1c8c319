package constants

// Default connectivity and retry values
const (
	DefaultHTTPTimeoutSec        = 30
	DefaultHealthPollIntervalSec = 30
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
	DefaultMaxAttempts           = 5
	DefaultStoreRetryAttempts    = 3
)

// Default local control server values
const (
	DefaultControlPort           = 8090
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 10
	ServerErrorChannelSize       = 1
)

// Event payload schema version, matching what the API stores.
const EventSchemaVersion = 1
