// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// ConversionMethod records how a record's document text was produced.
type ConversionMethod string

const (
	// MethodNone means retrieval was not attempted (no document reference).
	MethodNone    ConversionMethod = ""
	MethodDirect  ConversionMethod = "direct"
	MethodOptical ConversionMethod = "optical"
	MethodFailed  ConversionMethod = "failed"
)

// Field is one key/value pair parsed from a result row's metadata cell.
type Field struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Fields is an ordered key/value mapping. Setting an existing key replaces
// its value and keeps its original position.
type Fields []Field

// Set assigns value to key.
func (f *Fields) Set(key, value string) {
	for i := range *f {
		if (*f)[i].Key == key {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, Field{Key: key, Value: value})
}

// Get returns the value for key.
func (f Fields) Get(key string) (string, bool) {
	for _, kv := range f {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Keys returns the keys in order.
func (f Fields) Keys() []string {
	keys := make([]string, len(f))
	for i, kv := range f {
		keys[i] = kv.Key
	}
	return keys
}

// Map returns the fields as a plain map.
func (f Fields) Map() map[string]string {
	m := make(map[string]string, len(f))
	for _, kv := range f {
		m[kv.Key] = kv.Value
	}
	return m
}

// ResultRecord is one row of the portal's results table together with the
// retrieval outcome for its judgment document.
type ResultRecord struct {
	// Index is the zero-based row position in the results table.
	Index int `json:"index" yaml:"index"`

	// CaseName is the text of the row's case-title control.
	CaseName string `json:"case_name" yaml:"case_name"`

	// Fields holds the parsed metadata cell in source order.
	Fields Fields `json:"fields" yaml:"fields"`

	// DocumentRef is the judgment document URL. Nil when the row could not be
	// parsed or the reveal action surfaced no reference.
	DocumentRef *string `json:"judgment_url" yaml:"judgment_url"`

	// ParseError is set when the metadata cell was malformed.
	ParseError string `json:"parse_error,omitempty" yaml:"parse_error,omitempty"`

	// Text is the extracted document text.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// Method tells how Text was produced.
	Method ConversionMethod `json:"conversion_method" yaml:"conversion_method"`

	// Pages is the page count of the retrieved document.
	Pages int `json:"pages,omitempty" yaml:"pages,omitempty"`

	// RetrievalError is set when download or conversion failed.
	RetrievalError string `json:"retrieval_error,omitempty" yaml:"retrieval_error,omitempty"`
}

// Ref returns the document reference or the empty string.
func (r ResultRecord) Ref() string {
	if r.DocumentRef == nil {
		return ""
	}
	return *r.DocumentRef
}

// Clone returns a deep copy of the record.
func (r ResultRecord) Clone() ResultRecord {
	c := r
	if r.Fields != nil {
		c.Fields = append(Fields(nil), r.Fields...)
	}
	if r.DocumentRef != nil {
		ref := *r.DocumentRef
		c.DocumentRef = &ref
	}
	return c
}

// PageText is the text of one document page and how it was obtained.
// Fallback marks a page whose text layer was too sparse; Optical marks one
// whose text came from recognition. A fallback page that is not optical
// kept its sparse text and carries a Warning.
type PageText struct {
	Number   int    `json:"number" yaml:"number"`
	Text     string `json:"text" yaml:"text"`
	Density  int    `json:"density" yaml:"density"`
	Fallback bool   `json:"fallback" yaml:"fallback"`
	Optical  bool   `json:"optical" yaml:"optical"`
	Warning  string `json:"warning,omitempty" yaml:"warning,omitempty"`
}

// RetrievedDocument holds a downloaded document while it is converted.
type RetrievedDocument struct {
	Raw   []byte
	Pages []PageText
	Text  string
}

// Optical reports whether any page required the optical fallback, whether
// or not recognition succeeded.
func (d RetrievedDocument) Optical() bool {
	for _, p := range d.Pages {
		if p.Fallback {
			return true
		}
	}
	return false
}

// Warnings joins the page warnings as "page N: warning", or "" when
// every page converted cleanly.
func (d RetrievedDocument) Warnings() string {
	var parts []string
	for _, p := range d.Pages {
		if p.Warning != "" {
			parts = append(parts, fmt.Sprintf("page %d: %s", p.Number, p.Warning))
		}
	}
	return strings.Join(parts, "; ")
}
