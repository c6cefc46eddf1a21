package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// maxVerifyBody bounds the scanner request body.
const maxVerifyBody = 4 << 10

// verifyRequestSchema describes the body posted by the scanner page.
const verifyRequestSchema = `{
  "type": "object",
  "properties": {
    "qr_data": {"type": "string", "minLength": 1, "maxLength": 512}
  },
  "required": ["qr_data"]
}`

var errEmptyBody = errors.New("request body is empty")

// VerifyRequest is the scanner's POST body.
type VerifyRequest struct {
	QRData string `json:"qr_data"`
}

// RequestValidator checks JSON request bodies against a compiled schema.
type RequestValidator struct {
	schema *jsonschema.Schema
}

// NewVerifyRequestValidator compiles the verify_attendance body schema.
func NewVerifyRequestValidator() (*RequestValidator, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(verifyRequestSchema))
	if err != nil {
		return nil, fmt.Errorf("parse schema JSON: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)
	if err := compiler.AddResource("verify_attendance.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile("verify_attendance.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &RequestValidator{schema: schema}, nil
}

// Decode reads body, validates it and returns the request.
func (v *RequestValidator) Decode(body io.Reader) (VerifyRequest, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxVerifyBody))
	if err != nil {
		return VerifyRequest{}, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return VerifyRequest{}, errEmptyBody
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return VerifyRequest{}, fmt.Errorf("parse body: %w", err)
	}
	if err := v.schema.Validate(inst); err != nil {
		return VerifyRequest{}, fmt.Errorf("invalid body: %w", err)
	}

	obj, _ := inst.(map[string]any)
	data, _ := obj["qr_data"].(string)
	return VerifyRequest{QRData: data}, nil
}
