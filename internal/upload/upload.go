// Package upload builds the gzip+multipart payload for posting a combat
// log to an upload service. The HTTP client itself lives with the UI
// layer; this package stops at a ready request body and content type,
// never opening
// a network connection of its own.
package upload

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"mime/multipart"
)

// markerSubstrings are the three action names a well-formed combat log
// must contain at least one of: a file missing all three is
// rejected client-side rather than uploaded and rejected server-side.
var markerSubstrings = []string{"EnterCombat", "ExitCombat", "ApplyEffect"}

// Rejection names why BuildPayload refused to build a request.
type Rejection string

const (
	RejectEmpty       Rejection = "file is empty"
	RejectBadEncoding Rejection = "file failed single-byte decoding"
	RejectNoMarkers   Rejection = "file contains none of the required marker substrings"
)

// RejectedError wraps a Rejection so callers can distinguish "this file
// should never be offered for upload" from a build-time I/O failure.
type RejectedError struct {
	Reason Rejection
}

func (e *RejectedError) Error() string { return fmt.Sprintf("upload: rejected: %s", e.Reason) }

// Credentials carries the optional account fields the upload form
// accepts alongside the file itself.
type Credentials struct {
	Username string
	Password string
	Guild    string
}

// BuildPayload validates data against the client-side rejection
// rules, then gzips it and assembles a multipart/form-data body with
// fields file, public=1, and any non-empty Credentials fields. It
// returns the body and the Content-Type header value carrying the
// multipart boundary.
func BuildPayload(filename string, data []byte, creds Credentials) (*bytes.Buffer, string, error) {
	if len(data) == 0 {
		return nil, "", &RejectedError{Reason: RejectEmpty}
	}
	if !isDecodableSingleByte(data) {
		return nil, "", &RejectedError{Reason: RejectBadEncoding}
	}
	if !containsAnyMarker(data) {
		return nil, "", &RejectedError{Reason: RejectNoMarkers}
	}

	var gzBuf bytes.Buffer
	gw := gzip.NewWriter(&gzBuf)
	if _, err := gw.Write(data); err != nil {
		return nil, "", fmt.Errorf("upload: gzip write: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, "", fmt.Errorf("upload: gzip close: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename+".gz")
	if err != nil {
		return nil, "", fmt.Errorf("upload: create file part: %w", err)
	}
	if _, err := part.Write(gzBuf.Bytes()); err != nil {
		return nil, "", fmt.Errorf("upload: write file part: %w", err)
	}

	if err := writer.WriteField("public", "1"); err != nil {
		return nil, "", fmt.Errorf("upload: write public field: %w", err)
	}
	for name, value := range map[string]string{
		"username": creds.Username, "password": creds.Password, "guild": creds.Guild,
	} {
		if value == "" {
			continue
		}
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("upload: write %s field: %w", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("upload: close multipart writer: %w", err)
	}
	return &body, writer.FormDataContentType(), nil
}

// isDecodableSingleByte rejects a file containing NUL bytes or control
// characters outside common whitespace: the signature of a binary file
// or a corrupted transcode, rather than the single-byte-per-character
// log text the upload service expects.
func isDecodableSingleByte(data []byte) bool {
	for _, b := range data {
		if b == '\n' || b == '\r' || b == '\t' {
			continue
		}
		if b < 0x20 {
			return false
		}
	}
	return true
}

func containsAnyMarker(data []byte) bool {
	for _, marker := range markerSubstrings {
		if bytes.Contains(data, []byte(marker)) {
			return true
		}
	}
	return false
}
