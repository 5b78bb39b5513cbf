// Package syncerr defines the errors raised while synchronizing a mail
// server. Each type marks the scope a failure is contained at: a
// ConfigError or ConnectionError ends the server's run, a FolderError ends
// one folder (or the server when listing fails), a MessageError skips one
// message and a CleanupError is only ever logged.
package syncerr

import (
	"errors"
	"fmt"
)

// ConfigError reports an invalid server configuration detected before any
// network activity.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// ConnectionReason classifies a connection failure.
type ConnectionReason string

const (
	ReasonTLS       ConnectionReason = "tls"
	ReasonTimeout   ConnectionReason = "timeout"
	ReasonResolve   ConnectionReason = "resolve"
	ReasonAuth      ConnectionReason = "auth"
	ReasonTransport ConnectionReason = "transport"
)

// ConnectionError reports a failure to connect or log in to a server.
type ConnectionError struct {
	Reason ConnectionReason
	Host   string
	Err    error
}

func (e *ConnectionError) Error() string {
	switch e.Reason {
	case ReasonTLS:
		return fmt.Sprintf("SSL connection failed: %v", e.Err)
	case ReasonTimeout:
		return "Connection timed out"
	case ReasonResolve:
		return fmt.Sprintf("Could not resolve hostname: %s", e.Host)
	case ReasonAuth:
		return fmt.Sprintf("Login failed: %v", e.Err)
	default:
		return fmt.Sprintf("Connection failed: %v", e.Err)
	}
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Folder operations
const (
	OpList   = "list"
	OpSelect = "select"
	OpFetch  = "fetch"
)

// FolderError reports a failure to list, select or fetch a folder.
type FolderError struct {
	Folder string
	Op     string
	Err    error
}

func (e *FolderError) Error() string {
	if e.Op == OpList {
		return fmt.Sprintf("failed to list folders: %v", e.Err)
	}
	return fmt.Sprintf("failed to %s folder %s: %v", e.Op, e.Folder, e.Err)
}

func (e *FolderError) Unwrap() error { return e.Err }

// Message processing stages
const (
	StageParse     = "parse"
	StageNormalize = "normalize"
	StageThread    = "thread"
	StageStore     = "store"
)

// MessageError reports a failure to process a single message.
type MessageError struct {
	Folder string
	UID    uint32
	Stage  string
	Err    error
}

func (e *MessageError) Error() string {
	return fmt.Sprintf("failed to %s message %d in folder %s: %v", e.Stage, e.UID, e.Folder, e.Err)
}

func (e *MessageError) Unwrap() error { return e.Err }

// CleanupError reports a failed disconnect.
type CleanupError struct {
	Err error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("failed to disconnect: %v", e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

// IsConfig reports whether err (or any error in its chain) is a ConfigError.
func IsConfig(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

// IsConnection reports whether err (or any error in its chain) is a ConnectionError.
func IsConnection(err error) bool {
	var target *ConnectionError
	return errors.As(err, &target)
}

// IsFolder reports whether err (or any error in its chain) is a FolderError.
func IsFolder(err error) bool {
	var target *FolderError
	return errors.As(err, &target)
}
