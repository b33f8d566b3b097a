package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Record is one entry of the mirrored collection. Nested objects and unknown
// top-level fields are kept as raw JSON so a round trip never drops data the
// remote source attached to the record.
type Record struct {
	ID       int
	Name     string
	Username string
	Email    string
	Phone    string
	Website  string
	Address  Fields
	Company  Fields
	Extra    map[string]json.RawMessage
}

var knownRecordKeys = map[string]struct{}{
	"id":       {},
	"name":     {},
	"username": {},
	"email":    {},
	"phone":    {},
	"website":  {},
	"address":  {},
	"company":  {},
}

type recordWire struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Website  string `json:"website"`
	Address  Fields `json:"address"`
	Company  Fields `json:"company"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	address := r.Address
	if address == nil {
		address = Fields{}
	}
	company := r.Company
	if company == nil {
		company = Fields{}
	}
	known, err := json.Marshal(recordWire{
		ID:       r.ID,
		Name:     r.Name,
		Username: r.Username,
		Email:    r.Email,
		Phone:    r.Phone,
		Website:  r.Website,
		Address:  address,
		Company:  company,
	})
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return known, nil
	}
	keys := make([]string, 0, len(r.Extra))
	for key := range r.Extra {
		if _, reserved := knownRecordKeys[key]; reserved {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	buf.Write(known[:len(known)-1])
	for _, key := range keys {
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(r.Extra[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var wire recordWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	var extra map[string]json.RawMessage
	for key, value := range all {
		if _, ok := knownRecordKeys[key]; ok {
			continue
		}
		if extra == nil {
			extra = map[string]json.RawMessage{}
		}
		compacted, err := compactRaw(value)
		if err != nil {
			return err
		}
		extra[key] = compacted
	}
	*r = Record{
		ID:       wire.ID,
		Name:     wire.Name,
		Username: wire.Username,
		Email:    wire.Email,
		Phone:    wire.Phone,
		Website:  wire.Website,
		Address:  wire.Address,
		Company:  wire.Company,
		Extra:    extra,
	}
	return nil
}

// Clone returns a deep copy so callers can never alias store-owned maps.
func (r Record) Clone() Record {
	out := r
	out.Address = r.Address.Clone()
	out.Company = r.Company.Clone()
	if r.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(r.Extra))
		for key, value := range r.Extra {
			out.Extra[key] = append(json.RawMessage(nil), value...)
		}
	}
	return out
}

func (r Record) String() string {
	return fmt.Sprintf("#%d %s (%s)", r.ID, r.Name, r.Username)
}

// CloneAll deep-copies a record slice.
func CloneAll(in []Record) []Record {
	if in == nil {
		return nil
	}
	out := make([]Record, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

// Fields is a nested JSON object (address, company) whose members are kept raw.
type Fields map[string]json.RawMessage

// String returns the member as a string, or "" when it is absent or not a string.
func (f Fields) String(key string) string {
	raw, ok := f[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// With returns a copy of f with key set to the string value.
func (f Fields) With(key, value string) Fields {
	out := f.Clone()
	if out == nil {
		out = Fields{}
	}
	encoded, _ := json.Marshal(value)
	out[key] = encoded
	return out
}

func (f *Fields) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*f = nil
		return nil
	}
	out := make(Fields, len(raw))
	for key, value := range raw {
		compacted, err := compactRaw(value)
		if err != nil {
			return err
		}
		out[key] = compacted
	}
	*f = out
	return nil
}

// compactRaw normalizes whitespace so a decoded record compares equal to
// itself after a snapshot round trip.
func compactRaw(value json.RawMessage) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for key, value := range f {
		out[key] = append(json.RawMessage(nil), value...)
	}
	return out
}

// NewAddress builds the full address shape a locally created record carries.
func NewAddress(city string) Fields {
	return Fields{
		"street":  json.RawMessage(`""`),
		"suite":   json.RawMessage(`""`),
		"zipcode": json.RawMessage(`""`),
		"geo":     json.RawMessage(`{"lat":"","lng":""}`),
	}.With("city", city)
}

// NewCompany builds the full company shape a locally created record carries.
func NewCompany(name string) Fields {
	return Fields{
		"catchPhrase": json.RawMessage(`""`),
		"bs":          json.RawMessage(`""`),
	}.With("name", name)
}
