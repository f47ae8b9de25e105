package constants

import (
	"time"
)

// Transfer limits
const (
	// MaxUploadSize - hard ceiling on a single uploaded file (1 GiB)
	// Checked locally before an upload authorization is requested and again by the server.
	MaxUploadSize int64 = 1024 * 1024 * 1024

	// TransferBufferSize - copy buffer used for direct object-store transfers (256 KB)
	TransferBufferSize = 256 * 1024
)

// Transfer authorization lifetimes (devserver)
const (
	// UploadURLExpiry - lifetime of an issued upload authorization
	UploadURLExpiry = 15 * time.Minute

	// DownloadURLExpiry - lifetime of an issued download authorization
	DownloadURLExpiry = 15 * time.Minute

	// SessionLifetime - lifetime of a session token issued by the devserver
	SessionLifetime = 24 * time.Hour
)

// HTTP timeouts
const (
	// HTTPDialTimeout - TCP connect timeout
	HTTPDialTimeout = 30 * time.Second

	// HTTPKeepAlive - TCP keepalive interval
	HTTPKeepAlive = 30 * time.Second

	// HTTPTLSHandshakeTimeout - TLS handshake timeout
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPResponseHeaderTimeout - time to wait for response headers
	// Object stores can be slow to acknowledge large PUTs.
	HTTPResponseHeaderTimeout = 5 * time.Minute

	// HTTPIdleConnTimeout - how long idle pooled connections are kept
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPMaxIdleConns - pooled connections across all hosts
	HTTPMaxIdleConns = 50

	// HTTPMaxIdleConnsPerHost - pooled connections per host
	HTTPMaxIdleConnsPerHost = 10
)

// Disk space safety margin
const (
	// DiskSpaceBufferPercent - additional space to require beyond file size (15%)
	DiskSpaceBufferPercent = 0.15
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// UI Updates
const (
	// ProgressUpdateInterval - interval for progress bar refreshes (300ms)
	ProgressUpdateInterval = 300 * time.Millisecond
)

// Devserver defaults
const (
	// DefaultDevserverAddr - listen address for sharefold-devserver
	DefaultDevserverAddr = "127.0.0.1:8080"

	// DefaultAdminUsername - seeded administrator account
	DefaultAdminUsername = "admin"

	// DefaultAdminPassword - initial administrator password; must be changed at first login
	DefaultAdminPassword = "ChangeMe123!"
)
