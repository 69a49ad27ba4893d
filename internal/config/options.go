package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Options is the optional JSON run-options file. All fields are pointers so
// a partial file overlays defaults: fields omitted from the JSON keep their
// default values, supplied fields win over built-in defaults but lose to
// explicit command-line flags.
type Options struct {
	TwoPass       *bool   `json:"two_pass,omitempty"`
	ReadFilter    *string `json:"read_filter,omitempty"`
	DisplayFilter *string `json:"display_filter,omitempty"`

	// Format selects the output action: text, pdml, psml or fields.
	Format *string  `json:"format,omitempty"`
	Detail *bool    `json:"detail,omitempty"`
	Hex    *bool    `json:"hex,omitempty"`
	Fields []string `json:"fields,omitempty"`

	FieldSeparator *string `json:"field_separator,omitempty"`
	FieldQuote     *string `json:"field_quote,omitempty"`
	FieldHeader    *bool   `json:"field_header,omitempty"`

	Limit        *int    `json:"limit,omitempty"`
	DatabasePath *string `json:"database_path,omitempty"`
}

// EmptyOptions returns an Options with all fields unset.
func EmptyOptions() *Options {
	return &Options{}
}

// LoadOptions loads run options from a JSON file. The file is validated to
// ensure it has a .json extension and is under the max file size.
func LoadOptions(path string) (*Options, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("options file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat options file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("options file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read options file: %w", err)
	}

	opts := EmptyOptions()
	if err := json.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("failed to parse options JSON: %w", err)
	}

	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return opts, nil
}

var validFormats = map[string]bool{
	"text":   true,
	"pdml":   true,
	"psml":   true,
	"fields": true,
}

// Validate checks that the option values are valid.
func (o *Options) Validate() error {
	if o.Format != nil && !validFormats[*o.Format] {
		return fmt.Errorf("format must be one of text, pdml, psml, fields; got %q", *o.Format)
	}
	if o.Format != nil && *o.Format == "fields" && len(o.Fields) == 0 {
		return fmt.Errorf("format \"fields\" requires a non-empty fields list")
	}
	if o.Limit != nil && *o.Limit < 0 {
		return fmt.Errorf("limit must be non-negative, got %d", *o.Limit)
	}
	if o.FieldQuote != nil && len(*o.FieldQuote) > 1 {
		return fmt.Errorf("field_quote must be a single character, got %q", *o.FieldQuote)
	}
	return nil
}

// GetTwoPass returns the two_pass value or the default.
func (o *Options) GetTwoPass() bool {
	if o.TwoPass == nil {
		return false
	}
	return *o.TwoPass
}

// GetReadFilter returns the read_filter value or the default.
func (o *Options) GetReadFilter() string {
	if o.ReadFilter == nil {
		return ""
	}
	return *o.ReadFilter
}

// GetDisplayFilter returns the display_filter value or the default.
func (o *Options) GetDisplayFilter() string {
	if o.DisplayFilter == nil {
		return ""
	}
	return *o.DisplayFilter
}

// GetFormat returns the format value or the default.
func (o *Options) GetFormat() string {
	if o.Format == nil {
		return "text"
	}
	return *o.Format
}

// GetDetail returns the detail value or the default.
func (o *Options) GetDetail() bool {
	if o.Detail == nil {
		return false
	}
	return *o.Detail
}

// GetHex returns the hex value or the default.
func (o *Options) GetHex() bool {
	if o.Hex == nil {
		return false
	}
	return *o.Hex
}

// GetFieldSeparator returns the field_separator value or the default tab.
func (o *Options) GetFieldSeparator() string {
	if o.FieldSeparator == nil {
		return "\t"
	}
	return *o.FieldSeparator
}

// GetFieldQuote returns the field_quote value or the default.
func (o *Options) GetFieldQuote() string {
	if o.FieldQuote == nil {
		return ""
	}
	return *o.FieldQuote
}

// GetFieldHeader returns the field_header value or the default.
func (o *Options) GetFieldHeader() bool {
	if o.FieldHeader == nil {
		return false
	}
	return *o.FieldHeader
}

// GetLimit returns the limit value or the default (no limit).
func (o *Options) GetLimit() int {
	if o.Limit == nil {
		return 0
	}
	return *o.Limit
}

// GetDatabasePath returns the database_path value or the default.
func (o *Options) GetDatabasePath() string {
	if o.DatabasePath == nil {
		return ""
	}
	return *o.DatabasePath
}
