package staging

import (
	"path/filepath"
	"strings"
)

type Format string

const (
	FormatXML  Format = "xml"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// BinaryExt is the extension of the binary document paired with each data file.
const BinaryExt = ".pdf"

// FilePair is one data file and the same-stem binary document in the staging directory.
type FilePair struct {
	Name       string
	DataPath   string
	BinaryPath string
	Format     Format
}

// FormatOf returns the data format for path, or false when the extension is not supported.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		return FormatXML, true
	case ".json":
		return FormatJSON, true
	case ".csv":
		return FormatCSV, true
	default:
		return "", false
	}
}

// NewFilePair builds the pair for a data file located in dir.
func NewFilePair(dir, dataFile string) (FilePair, bool) {
	format, ok := FormatOf(dataFile)
	if !ok {
		return FilePair{}, false
	}
	stem := strings.TrimSuffix(dataFile, filepath.Ext(dataFile))
	return FilePair{
		Name:       stem,
		DataPath:   filepath.Join(dir, dataFile),
		BinaryPath: filepath.Join(dir, stem+BinaryExt),
		Format:     format,
	}, true
}

// Files returns the pair's paths, data file first.
func (p FilePair) Files() []string {
	return []string{p.DataPath, p.BinaryPath}
}
