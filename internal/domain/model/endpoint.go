package model

import "encoding/json"

// AddressLabel is the intelligence summary attached to an address: its
// public name (e.g. "Binance"), entity type (e.g. "Exchange") and tags.
type AddressLabel struct {
	Name string   `json:"name,omitempty"`
	Type string   `json:"type,omitempty"`
	Tags []string `json:"tags,omitempty"`
}

// IsEmpty reports whether the label carries no usable information.
// Labels with neither a name nor tags are not persisted.
func (l AddressLabel) IsEmpty() bool {
	return l.Name == "" && len(l.Tags) == 0
}

// Endpoint is one side of a value movement. Upstream payloads encode
// endpoints either as a bare address string or as an object with
// contract metadata; UnmarshalJSON accepts both forms and normalises
// to the structured representation.
type Endpoint struct {
	Address    string        `json:"address"`
	IsContract bool          `json:"isContract"`
	Label      *AddressLabel `json:"addressInfo,omitempty"`
}

func (e *Endpoint) UnmarshalJSON(data []byte) error {
	var addr string
	if err := json.Unmarshal(data, &addr); err == nil {
		*e = Endpoint{Address: addr}
		return nil
	}

	type plain Endpoint
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Endpoint(p)
	return nil
}
