package validation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/smallbiznis/datasync/internal/config"
	"github.com/smallbiznis/datasync/internal/staging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validXML = `<?xml version="1.0" encoding="UTF-8"?>
<document>
    <name>Ada Lovelace</name>
    <age>36</age>
    <color>teal</color>
</document>`

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New(config.Config{})
	require.NoError(t, err)
	return v
}

func writePair(t *testing.T, ext, content string, withBinary bool) staging.FilePair {
	t.Helper()
	dir := t.TempDir()
	p, ok := staging.NewFilePair(dir, "doc"+ext)
	require.True(t, ok)
	require.NoError(t, os.WriteFile(p.DataPath, []byte(content), 0o644))
	if withBinary {
		require.NoError(t, os.WriteFile(p.BinaryPath, []byte("%PDF-1.4"), 0o644))
	}
	return p
}

func TestValidateAcceptsEachFormat(t *testing.T) {
	v := newValidator(t)
	cases := map[string]string{
		".xml":  validXML,
		".json": `{"BatchID":"B1","Documents":[{"DocumentID":"D1","Fields":{}}]}`,
		".csv":  "name,age\nada,36\ngrace,85\n",
	}
	for ext, content := range cases {
		t.Run(ext, func(t *testing.T) {
			assert.NoError(t, v.Validate(context.Background(), writePair(t, ext, content, true)))
		})
	}
}

func TestValidateMissingBinary(t *testing.T) {
	v := newValidator(t)
	err := v.Validate(context.Background(), writePair(t, ".xml", validXML, false))
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrMissingFile)
}

func TestValidateMissingDataFile(t *testing.T) {
	v := newValidator(t)
	p := writePair(t, ".json", "{}", true)
	require.NoError(t, os.Remove(p.DataPath))

	err := v.Validate(context.Background(), p)
	assert.ErrorIs(t, err, ErrMissingFile)
}

func TestValidateXMLSchemaViolation(t *testing.T) {
	v := newValidator(t)
	xml := `<document><name>Ada</name><age>old</age></document>`

	err := v.Validate(context.Background(), writePair(t, ".xml", xml, true))
	assert.ErrorIs(t, err, ErrSchema)
	assert.Contains(t, err.Error(), "color")
}

func TestValidateMalformedInputs(t *testing.T) {
	v := newValidator(t)
	cases := map[string]string{
		".xml":  `<document><name>Ada</name>`,
		".json": `{"BatchID": }`,
		".csv":  "a,b\n1,2,3\n",
	}
	for ext, content := range cases {
		t.Run(ext, func(t *testing.T) {
			err := v.Validate(context.Background(), writePair(t, ext, content, true))
			assert.ErrorIs(t, err, ErrValidation)
			assert.NotErrorIs(t, err, ErrMissingFile)
		})
	}
}

func TestValidateJSONTrailingData(t *testing.T) {
	v := newValidator(t)
	err := v.Validate(context.Background(), writePair(t, ".json", `{"a":1} {"b":2}`, true))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidateUnsupportedFormat(t *testing.T) {
	v := newValidator(t)
	p := writePair(t, ".csv", "a\n1\n", true)
	p.Format = "yaml"

	err := v.Validate(context.Background(), p)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestNewWithSchemaPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"object","required":["invoice"]}`), 0o644))

	v, err := New(config.Config{Staging: config.StagingConfig{SchemaPath: path}})
	require.NoError(t, err)

	assert.ErrorIs(t, v.Validate(context.Background(), writePair(t, ".xml", validXML, true)), ErrSchema)
	assert.NoError(t, v.Validate(context.Background(), writePair(t, ".xml", `<invoice><no>1</no></invoice>`, true)))
}

func TestNewRejectsBrokenSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type": 12}`), 0o644))

	_, err := New(config.Config{Staging: config.StagingConfig{SchemaPath: path}})
	assert.Error(t, err)
}
