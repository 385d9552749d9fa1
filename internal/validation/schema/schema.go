package schema

import _ "embed"

// Document is the default JSON Schema applied to XML data files after they
// are decoded into a generic map.
//
//go:embed document.schema.json
var Document []byte
