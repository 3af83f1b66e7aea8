// Package types defines the shared wire and domain types for the
// freetracer privileged-helper protocol.
package types

// Opcode identifies a helper operation.
type Opcode string

// Opcode constants. Every request sent to the helper carries exactly one.
const (
	OpCheckInstalled Opcode = "check_installed"
	OpInstall        Opcode = "install"
	OpQueryVersion   Opcode = "query_version"
	OpUnmount        Opcode = "unmount"
	OpWriteImage     Opcode = "write_image"
)

// IsDestructive returns true if the opcode mutates the target device.
// Destructive opcodes are gated on the removable-media invariant.
func (o Opcode) IsDestructive() bool {
	return o == OpUnmount || o == OpWriteImage
}

// Valid returns true if the opcode is part of the protocol.
func (o Opcode) Valid() bool {
	switch o {
	case OpCheckInstalled, OpInstall, OpQueryVersion, OpUnmount, OpWriteImage:
		return true
	}
	return false
}

// ReturnCode is the result taxonomy shared by every helper operation.
type ReturnCode string

// ReturnCode constants.
//
// CodeTryAgain is transient: a corrective action (install or reinstall)
// has been taken and the caller must retry the same logical operation
// exactly once. A second TryAgain for the same operation is a Failure.
const (
	CodeSuccess       ReturnCode = "success"
	CodeFailure       ReturnCode = "failure"
	CodeTryAgain      ReturnCode = "try_again"
	CodeFailedToWrite ReturnCode = "failed_to_write"
)

// Terminal returns true if the code ends the operation (no retry allowed).
func (c ReturnCode) Terminal() bool {
	return c != CodeTryAgain
}

// HelperRequest is the request half of the helper protocol.
// Immutable once sent; sender identity is supplied out of band by the
// transport (peer credentials), never by the request body.
type HelperRequest struct {
	// Opcode selects the helper operation.
	Opcode Opcode `msgpack:"opcode"`
	// Payload is the opcode-specific body, msgpack-encoded.
	// Bounded by ipc.MaxPayloadSize; oversized payloads are rejected
	// by the codec, never fragmented.
	Payload []byte `msgpack:"payload,omitempty"`
}

// HelperResponse is the response half of the helper protocol.
type HelperResponse struct {
	// Code is the operation result.
	Code ReturnCode `msgpack:"code"`
	// Message is an optional bounded string payload, e.g. the installed
	// helper version for query_version.
	Message string `msgpack:"message,omitempty"`
}

// WriteImagePayload is the body of a write_image request.
// A single typed structure replaces ad hoc "path;device" concatenation;
// it is serialized through one bounded codec function (ipc.EncodePayload).
type WriteImagePayload struct {
	// ImagePath is the validated source image path.
	ImagePath string `msgpack:"image_path"`
	// DevicePath is the target block device path.
	DevicePath string `msgpack:"device_path"`
	// ImageSize is the source size in bytes, used by the helper to bound
	// the transfer and report progress.
	ImageSize int64 `msgpack:"image_size"`
}

// UnmountPayload is the body of an unmount request.
type UnmountPayload struct {
	// DevicePath is the block device whose volumes are unmounted.
	// Unmount never ejects; ejection is a separate explicit request.
	DevicePath string `msgpack:"device_path"`
	// Eject requests an eject instead of a plain unmount.
	Eject bool `msgpack:"eject,omitempty"`
}
