package snapshot

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const Version = 1

// Save is the on-disk form of a board. Files written by older tools without a
// version or cells field still load.
type Save struct {
	Version   int       `json:"version,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Size      int       `json:"size"`
	NextID    uint32    `json:"next_id"`
	Placed    []PieceV1 `json:"placed"`
}

type PieceV1 struct {
	PID   uint32   `json:"pid"`
	Name  string   `json:"name"`
	Cubes [][3]int `json:"cubes"`
	Pos   [3]int   `json:"pos"`
	Cells [][3]int `json:"cells,omitempty"`
}

const saveSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["size", "placed"],
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "session_id": {"type": "string"},
    "size": {"type": "integer", "minimum": 1, "maximum": 64},
    "next_id": {"type": "integer", "minimum": 0},
    "placed": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["pid", "name", "cubes", "pos"],
        "properties": {
          "pid": {"type": "integer", "minimum": 1},
          "name": {"type": "string", "minLength": 1},
          "cubes": {"type": "array", "items": {"$ref": "#/definitions/coord"}},
          "pos": {"$ref": "#/definitions/coord"},
          "cells": {"type": "array", "items": {"$ref": "#/definitions/coord"}}
        }
      }
    }
  },
  "definitions": {
    "coord": {
      "type": "array",
      "minItems": 3,
      "maxItems": 3,
      "items": {"type": "integer"}
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("save.schema.json", saveSchema)
	})
	return schema, schemaErr
}

func compressed(path string) bool { return strings.HasSuffix(path, ".zst") }

// Write stores save as indented JSON, zstd-compressed when path ends in ".zst".
func Write(path string, save Save) error {
	if save.Version == 0 {
		save.Version = Version
	}
	b, err := json.MarshalIndent(save, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := writeTo(f, b, compressed(path)); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeTo(f *os.File, b []byte, zst bool) error {
	var w io.Writer = f
	var enc *zstd.Encoder
	if zst {
		var err error
		enc, err = zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		w = enc
	}
	bw := bufio.NewWriterSize(w, 64*1024)
	if _, err := bw.Write(b); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if enc != nil {
		return enc.Close()
	}
	return nil
}

// Read loads and schema-checks a save file.
func Read(path string) (Save, error) {
	var save Save
	f, err := os.Open(path)
	if err != nil {
		return save, err
	}
	defer f.Close()

	var r io.Reader = f
	if compressed(path) {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return save, err
		}
		defer dec.Close()
		r = dec
	}
	raw, err := io.ReadAll(bufio.NewReaderSize(r, 64*1024))
	if err != nil {
		return save, err
	}
	return Decode(raw)
}

// Decode validates raw against the save schema and decodes it.
func Decode(raw []byte) (Save, error) {
	var save Save
	s, err := compiledSchema()
	if err != nil {
		return save, fmt.Errorf("save schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return save, fmt.Errorf("save: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return save, fmt.Errorf("save: %w", err)
	}
	if err := json.Unmarshal(raw, &save); err != nil {
		return save, fmt.Errorf("save: %w", err)
	}
	if save.Version == 0 {
		save.Version = Version
	}
	return save, nil
}
