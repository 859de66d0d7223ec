// Package wire implements the newline-delimited JSON request/response
// envelope used on the daemon's Unix domain socket.
//
// Each request is a single JSON object terminated by '\n'; each response is
// a single JSON object terminated by '\n'. There is no length prefix and no
// enclosing array — ReadRequest and ReadResponse read from a bufio.Reader
// until the newline, with no bound on line length.
package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Request is the envelope for every command sent to the daemon.
type Request struct {
	Command string          `json:"command"`
	Fields  json.RawMessage `json:"-"`
}

// rawRequest mirrors Request for marshaling: Command plus arbitrary
// additional top-level fields supplied by the caller.
type rawRequest map[string]json.RawMessage

// MarshalJSON flattens Fields alongside Command into one JSON object.
func (r Request) MarshalJSON() ([]byte, error) {
	raw := rawRequest{}
	if len(r.Fields) > 0 {
		if err := json.Unmarshal(r.Fields, &raw); err != nil {
			return nil, fmt.Errorf("wire: request fields must be a JSON object: %w", err)
		}
	}
	cmd, err := json.Marshal(r.Command)
	if err != nil {
		return nil, err
	}
	raw["command"] = cmd
	return json.Marshal(raw)
}

// UnmarshalJSON keeps Command separate and stashes the rest of the object
// in Fields so handlers can decode only the fields they need.
func (r *Request) UnmarshalJSON(data []byte) error {
	var raw rawRequest
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if cmdRaw, ok := raw["command"]; ok {
		if err := json.Unmarshal(cmdRaw, &r.Command); err != nil {
			return fmt.Errorf("wire: command must be a string: %w", err)
		}
	}
	r.Fields = data
	return nil
}

// Field decodes a single named field from the request into v. Returns false
// if the field is absent.
func (r Request) Field(name string, v any) (bool, error) {
	if len(r.Fields) == 0 {
		return false, nil
	}
	var raw rawRequest
	if err := json.Unmarshal(r.Fields, &raw); err != nil {
		return false, err
	}
	val, ok := raw[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(val, v); err != nil {
		return false, fmt.Errorf("wire: field %q: %w", name, err)
	}
	return true, nil
}

// RequireField decodes a required field, returning a descriptive error
// when it is absent.
func (r Request) RequireField(name string, v any) error {
	ok, err := r.Field(name, v)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("missing required field %q", name)
	}
	return nil
}

// Response is the envelope for every reply the daemon writes back.
type Response struct {
	Status  string `json:"status"` // "ok" or "error"
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// OK builds a success response carrying data (nil is a valid payload,
// representing the "no workflow" soft-null case).
func OK(data any) Response {
	return Response{Status: "ok", Data: data}
}

// Err builds an error response.
func Err(format string, args ...any) Response {
	return Response{Status: "error", Message: fmt.Sprintf(format, args...)}
}

// Write serializes resp as one newline-terminated JSON line.
func Write(w io.Writer, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// WriteRequest serializes req as one newline-terminated JSON line.
func WriteRequest(w io.Writer, req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// ReadRequest reads a single newline-terminated JSON request from r.
func ReadRequest(r *bufio.Reader) (Request, error) {
	line, err := r.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return Request{}, err
	}
	var req Request
	if uerr := json.Unmarshal(line, &req); uerr != nil {
		return Request{}, fmt.Errorf("malformed request: %w", uerr)
	}
	return req, nil
}

// ReadResponse reads a single newline-terminated JSON response from r.
func ReadResponse(r *bufio.Reader) (Response, error) {
	line, err := r.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return Response{}, err
	}
	var resp Response
	if uerr := json.Unmarshal(line, &resp); uerr != nil {
		return Response{}, fmt.Errorf("malformed response: %w", uerr)
	}
	return resp, nil
}

// DecodeData re-marshals resp.Data (decoded generically by encoding/json as
// map[string]any) into v, a concrete struct pointer. Used by client code
// that wants typed access to a successful response's payload.
func DecodeData(resp Response, v any) error {
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
