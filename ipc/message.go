package ipc

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/freetracer/types"
)

// EncodeRequest encodes a helper request as a msgpack frame payload.
// Rejects unknown opcodes and bodies above the payload cap.
func EncodeRequest(req *types.HelperRequest) ([]byte, error) {
	if !req.Opcode.Valid() {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("unknown opcode %q", req.Opcode),
		}
	}

	payload, err := msgpack.Marshal(req)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to encode request",
			Err:  err,
		}
	}
	if len(payload) > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("request size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}
	return payload, nil
}

// DecodeRequest decodes a frame payload as a helper request.
func DecodeRequest(payload []byte) (*types.HelperRequest, error) {
	var req types.HelperRequest
	if err := msgpack.Unmarshal(payload, &req); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode request",
			Err:  err,
		}
	}
	if !req.Opcode.Valid() {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("unknown opcode %q", req.Opcode),
		}
	}
	return &req, nil
}

// EncodeResponse encodes a helper response as a msgpack frame payload.
func EncodeResponse(resp *types.HelperResponse) ([]byte, error) {
	payload, err := msgpack.Marshal(resp)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to encode response",
			Err:  err,
		}
	}
	if len(payload) > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("response size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}
	return payload, nil
}

// DecodeResponse decodes a frame payload as a helper response.
func DecodeResponse(payload []byte) (*types.HelperResponse, error) {
	var resp types.HelperResponse
	if err := msgpack.Unmarshal(payload, &resp); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode response",
			Err:  err,
		}
	}
	return &resp, nil
}

// EncodePayload is the single codec for opcode-specific request bodies
// (types.WriteImagePayload, types.UnmountPayload). Bounding happens
// here so no caller can smuggle an oversized body into a request.
func EncodePayload(v any) ([]byte, error) {
	body, err := msgpack.Marshal(v)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to encode payload",
			Err:  err,
		}
	}
	if len(body) > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(body), MaxPayloadSize),
		}
	}
	return body, nil
}

// DecodePayload decodes an opcode-specific request body into v.
func DecodePayload(body []byte, v any) error {
	if err := msgpack.Unmarshal(body, v); err != nil {
		return &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode payload",
			Err:  err,
		}
	}
	return nil
}
