// Package metadata bulk loads catalog definitions from YAML. Rows reference
// each other by natural key (source name and connection details, stage name,
// table name) and rows that already exist are skipped, so a file can be
// loaded repeatedly.
package metadata

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Document is the root of a catalog file.
type Document struct {
	Sources          []models.SourceCreate `yaml:"sources"`
	Stages           []models.StageCreate  `yaml:"stages"`
	DataTypeMappings []DataTypeMapping     `yaml:"data_type_mappings"`
	Tables           []Table               `yaml:"tables"`
}

// SourceRef names a source. ConnectionDetails may be left out when the
// document declares a single source of that name.
type SourceRef struct {
	Source                  string  `yaml:"source"`
	SourceConnectionDetails *string `yaml:"source_connection_details"`
}

// DataTypeMapping names its source instead of carrying its id.
type DataTypeMapping struct {
	SourceRef                    `yaml:",inline"`
	models.DataTypeMappingCreate `yaml:",inline"`
}

type Table struct {
	SourceRef          `yaml:",inline"`
	Stage              string   `yaml:"stage"`
	Columns            []Column `yaml:"columns"`
	models.TableCreate `yaml:",inline"`
}

type Column struct {
	// DataTypeMapping is the source_data_type of a mapping of the table's
	// source.
	DataTypeMapping     string `yaml:"data_type_mapping"`
	models.ColumnCreate `yaml:",inline"`
}

// Parse decodes a catalog document.
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &doc, nil
}

// ParseFile reads and decodes the catalog document at path.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}
