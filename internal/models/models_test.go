package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Fields
	}{
		{
			name:     "strings",
			input:    `{"country":"Italie","year":"1980"}`,
			expected: Fields{Country: NewText("Italie"), Year: NewText("1980")},
		},
		{
			name:     "null year stays null",
			input:    `{"year":null}`,
			expected: Fields{Year: NullText()},
		},
		{
			name:     "numeric year kept as text",
			input:    `{"year":1980}`,
			expected: Fields{Year: NewText("1980")},
		},
		{
			name:     "empty notes",
			input:    `{"notes":""}`,
			expected: Fields{Notes: NewText("")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Fields
			require.NoError(t, json.Unmarshal([]byte(tt.input), &got))
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestTextUnmarshalRejectsObjects(t *testing.T) {
	var got Fields
	err := json.Unmarshal([]byte(`{"country":{"name":"Italie"}}`), &got)
	assert.Error(t, err)
}

func TestRecordMarshalShape(t *testing.T) {
	unit := CoinUnit{ID: 1, Face: "002_face.jpg", Reverse: "002_pile.jpg"}

	t.Run("failed record has only id, images and error", func(t *testing.T) {
		data, err := json.Marshal(NewFailedRecord(unit, errors.New("boom")))
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":1,"images":["002_face.jpg","002_pile.jpg"],"error":"boom"}`, string(data))
	})

	t.Run("recognized record keeps null year", func(t *testing.T) {
		rec := NewRecognizedRecord(unit, Fields{Country: NewText("France"), Year: NullText()})
		data, err := json.Marshal(rec)
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":1,"country":"France","year":null,"images":["002_face.jpg","002_pile.jpg"]}`, string(data))
	})
}

func TestRecordLabel(t *testing.T) {
	rec := CoinRecord{Fields: Fields{Country: NewText("Italie"), Value: NewText("200 Lire"), Year: NullText()}}
	assert.Equal(t, "Italie - 200 Lire (?)", rec.Label())
}
