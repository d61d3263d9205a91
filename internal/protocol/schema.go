package protocol

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/request.schema.json
var requestSchema string

var (
	requestOnce     sync.Once
	requestCompiled *jsonschema.Schema
	requestErr      error
)

func compiledRequestSchema() (*jsonschema.Schema, error) {
	requestOnce.Do(func() {
		requestCompiled, requestErr = jsonschema.CompileString("request.schema.json", requestSchema)
	})
	return requestCompiled, requestErr
}

// DecodeRequest validates raw against the request schema and decodes it.
func DecodeRequest(raw []byte) (RequestMsg, error) {
	var req RequestMsg
	s, err := compiledRequestSchema()
	if err != nil {
		return req, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return req, fmt.Errorf("decode: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return req, err
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("decode: %w", err)
	}
	return req, nil
}
