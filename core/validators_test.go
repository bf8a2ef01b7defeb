package core

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitValidators(t *testing.T) {
	validate := validator.New()
	translator := NewTranslator()
	InitValidators(validate, translator)

	type payload struct {
		Username string `json:"username" validate:"required,alphanum_"`
		Ignored  string `json:"-"`
	}

	tests := []struct {
		name    string
		data    payload
		wantMsg string
	}{
		{name: "valid", data: payload{Username: "awe_01"}},
		{name: "missing", data: payload{}, wantMsg: "this field is required"},
		{name: "invalid chars", data: payload{Username: "awe 01!"}, wantMsg: alphaNumUnderText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.data)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			vErrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok)
			require.Len(t, vErrs, 1)
			assert.Equal(t, "username", vErrs[0].Field())
			assert.Equal(t, tt.wantMsg, vErrs[0].Translate(translator))
		})
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		val  float64
		want float64
	}{
		{val: 7.125, want: 7.13},
		{val: 7.124, want: 7.12},
		{val: 0, want: 0},
		{val: 10, want: 10},
		{val: 6.666666, want: 6.67},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round(tt.val, 2), "Round(%v, 2)", tt.val)
	}
}

func TestFilterOrderings(t *testing.T) {
	ords := []DBOrdering{
		{Field: "name", Ascending: true},
		{Field: "password_hash"},
		{Field: "created_at"},
		{Field: "name; DROP TABLE users"},
	}
	got := FilterOrderings(ords, "name", "created_at", "name; DROP TABLE users")
	assert.Equal(t, []DBOrdering{{Field: "name", Ascending: true}, {Field: "created_at"}}, got)
	assert.Equal(t, "created_at DESC", got[1].String())
	assert.Nil(t, FilterOrderings(nil, "name"))
}

func TestStringSet(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, StringSet("a", "", "b", "a", "c", "b"))
	assert.Empty(t, StringSet())
}
