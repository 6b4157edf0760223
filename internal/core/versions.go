package core

import (
	"encoding/json"
	"fmt"
)

// VersionMap is a package's published versions in the order the registry
// listed them.
type VersionMap struct {
	order   []string
	records map[string]VersionRecord
	// Rev is the document revision the map was read at, if the registry
	// reported one.
	Rev string
}

// NewVersionMap returns an empty map.
func NewVersionMap() *VersionMap {
	return &VersionMap{records: make(map[string]VersionRecord)}
}

// Set adds or replaces version. A new version is appended to the order.
func (m *VersionMap) Set(version string, rec VersionRecord) {
	if m.records == nil {
		m.records = make(map[string]VersionRecord)
	}
	if _, ok := m.records[version]; !ok {
		m.order = append(m.order, version)
	}
	m.records[version] = rec
}

// Get returns the record for version.
func (m *VersionMap) Get(version string) (VersionRecord, bool) {
	if m == nil {
		return VersionRecord{}, false
	}
	rec, ok := m.records[version]
	return rec, ok
}

// Has reports whether version is present.
func (m *VersionMap) Has(version string) bool {
	_, ok := m.Get(version)
	return ok
}

// Versions returns the version identifiers in registry order.
func (m *VersionMap) Versions() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.order...)
}

// Len returns the number of versions.
func (m *VersionMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// UnmarshalJSON decodes a "versions" object, keeping key order.
func (m *VersionMap) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	*m = VersionMap{records: make(map[string]VersionRecord, len(fields))}
	for _, f := range fields {
		var rec VersionRecord
		if err := json.Unmarshal(f.Value, &rec); err != nil {
			return fmt.Errorf("version %s: %w", f.Key, err)
		}
		m.Set(f.Key, rec)
	}
	return nil
}

// MarshalJSON encodes the map in registry order.
func (m *VersionMap) MarshalJSON() ([]byte, error) {
	fields := make([]Field, 0, m.Len())
	for _, v := range m.Versions() {
		raw, err := json.Marshal(m.records[v])
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Key: v, Value: raw})
	}
	return encodeObject(fields)
}

// Document is the part of a package document the replicator reads.
type Document struct {
	ID       string            `json:"_id,omitempty"`
	Rev      string            `json:"_rev,omitempty"`
	Name     string            `json:"name"`
	DistTags map[string]string `json:"dist-tags,omitempty"`
	Versions *VersionMap       `json:"versions"`
}

// ParseDocument decodes a package document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding package document: %w", err)
	}
	if doc.Versions == nil {
		doc.Versions = NewVersionMap()
	}
	doc.Versions.Rev = doc.Rev
	return &doc, nil
}
