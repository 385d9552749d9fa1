package validation

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/clbanning/mxj/v2"
	"github.com/smallbiznis/datasync/internal/config"
	"github.com/smallbiznis/datasync/internal/staging"
	"github.com/smallbiznis/datasync/internal/validation/schema"
	"github.com/xeipuuv/gojsonschema"
)

// Validator checks that both files of a pair exist and that the data file is
// structurally valid for its format.
type Validator struct {
	schema *gojsonschema.Schema
}

// New compiles the XML document schema, from SCHEMA_PATH when set.
func New(cfg config.Config) (*Validator, error) {
	raw := schema.Document
	if path := strings.TrimSpace(cfg.Staging.SchemaPath); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", path, err)
		}
		raw = b
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile document schema: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

func (v *Validator) Validate(_ context.Context, pair staging.FilePair) error {
	if err := requireFile(pair.DataPath); err != nil {
		return err
	}
	if err := requireFile(pair.BinaryPath); err != nil {
		return err
	}

	data, err := os.ReadFile(pair.DataPath)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrValidation, pair.DataPath, err)
	}

	switch pair.Format {
	case staging.FormatXML:
		return v.validateXML(data)
	case staging.FormatJSON:
		return validateJSON(data)
	case staging.FormatCSV:
		return validateCSV(data)
	default:
		return fmt.Errorf("%w: %w: %q", ErrValidation, ErrUnsupportedFormat, pair.Format)
	}
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w: %s", ErrValidation, ErrMissingFile, path)
	}
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", ErrValidation, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %w: %s is a directory", ErrValidation, ErrMissingFile, path)
	}
	return nil
}

func (v *Validator) validateXML(data []byte) error {
	doc, err := mxj.NewMapXml(data)
	if err != nil {
		return fmt.Errorf("%w: parse xml: %w", ErrValidation, err)
	}
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(map[string]interface{}(doc)))
	if err != nil {
		return fmt.Errorf("%w: apply schema: %w", ErrValidation, err)
	}
	if result.Valid() {
		return nil
	}
	reasons := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		reasons = append(reasons, re.String())
	}
	return fmt.Errorf("%w: %w: %s", ErrValidation, ErrSchema, strings.Join(reasons, "; "))
}

func validateJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: parse json: %w", ErrValidation, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: parse json: trailing data after document", ErrValidation)
	}
	return nil
}

func validateCSV(data []byte) error {
	r := csv.NewReader(bytes.NewReader(data))
	for {
		_, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: parse csv: %w", ErrValidation, err)
		}
	}
}
