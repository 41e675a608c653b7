package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ImageRef is the file name of a single coin photograph, relative to the
// directory it was discovered in.
type ImageRef string

// CoinUnit pairs the face and reverse photographs of one coin
type CoinUnit struct {
	ID      int
	Face    ImageRef
	Reverse ImageRef
}

// Images returns the unit's references in face, reverse order.
func (u CoinUnit) Images() [2]string {
	return [2]string{string(u.Face), string(u.Reverse)}
}

// Text is a free-text field that keeps apart an absent value, an explicit
// JSON null and a string.
type Text struct {
	Value string
	Valid bool // false marshals as null
	Set   bool // false omits the field
}

// NewText returns a present, non-null Text.
func NewText(s string) Text {
	return Text{Value: s, Valid: true, Set: true}
}

// NullText returns a present Text that marshals as null.
func NullText() Text {
	return Text{Set: true}
}

// IsZero reports whether the field is absent. Used by the omitzero tag.
func (t Text) IsZero() bool {
	return !t.Set
}

// Or returns the text value, or fallback when absent or null.
func (t Text) Or(fallback string) string {
	if !t.Valid {
		return fallback
	}
	return t.Value
}

func (t Text) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Value)
}

// UnmarshalJSON accepts strings, null, and numbers. Numbers are kept as
// their literal text since models sometimes answer "year": 1980.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	t.Set = true
	if bytes.Equal(data, []byte("null")) {
		t.Value, t.Valid = "", false
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &t.Value); err != nil {
			return err
		}
		t.Valid = true
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string, number or null, got %s", data)
	}
	t.Value, t.Valid = n.String(), true
	return nil
}

// Fields are the values extracted from one recognition reply.
type Fields struct {
	Country  Text `json:"country,omitzero"`
	Currency Text `json:"currency,omitzero"`
	Value    Text `json:"value,omitzero"`
	Year     Text `json:"year,omitzero"`
	Notes    Text `json:"notes,omitzero"`
}

// Valuation is the operator-entered market price attached to a record.
type Valuation struct {
	Price       string `json:"price"`
	Currency    string `json:"currency"`
	Condition   string `json:"condition"`
	SourceName  string `json:"source_name"`
	SourceURL   string `json:"source_url"`
	LastUpdated string `json:"last_updated"`
	Notes       string `json:"notes,omitempty"`
}

// CoinRecord is the persisted outcome for one coin unit. A failed record
// carries Error instead of the recognized fields.
type CoinRecord struct {
	ID int `json:"id"`
	Fields
	Images      [2]string  `json:"images"`
	Error       string     `json:"error,omitempty"`
	Valuation   *Valuation `json:"valuation,omitempty"`
	AIGenerated *bool      `json:"ai_generated,omitempty"`
}

// NewRecognizedRecord builds the record for a unit whose reply parsed.
func NewRecognizedRecord(unit CoinUnit, fields Fields) CoinRecord {
	return CoinRecord{
		ID:     unit.ID,
		Fields: fields,
		Images: unit.Images(),
	}
}

// NewFailedRecord builds the record for a unit that could not be recognized.
func NewFailedRecord(unit CoinUnit, err error) CoinRecord {
	return CoinRecord{
		ID:     unit.ID,
		Images: unit.Images(),
		Error:  err.Error(),
	}
}

// Failed reports whether the record holds an error instead of fields.
func (r CoinRecord) Failed() bool {
	return r.Error != ""
}

// Label is a short human description, e.g. "Italie - 200 Lire (1980)".
func (r CoinRecord) Label() string {
	return fmt.Sprintf("%s - %s (%s)", r.Country.Or("?"), r.Value.Or("?"), r.Year.Or("?"))
}
