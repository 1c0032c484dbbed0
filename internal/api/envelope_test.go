package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sberrors "github.com/felixgeelhaar/stockbook/internal/errors"
)

type item struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestDecode(t *testing.T) {
	t.Run("envelope", func(t *testing.T) {
		got, err := Decode[item](&Response{Status: 200, Data: []byte(`{"success":true,"message":"ok","data":{"id":1,"name":"a"}}`)})
		require.NoError(t, err)
		assert.Equal(t, item{ID: 1, Name: "a"}, got)
	})

	t.Run("bare object", func(t *testing.T) {
		got, err := Decode[item](&Response{Status: 200, Data: []byte(`{"id":2,"name":"b"}`)})
		require.NoError(t, err)
		assert.Equal(t, item{ID: 2, Name: "b"}, got)
	})

	t.Run("bare array", func(t *testing.T) {
		got, err := Decode[[]item](&Response{Status: 200, Data: []byte(`[{"id":3}]`)})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("unsuccessful envelope", func(t *testing.T) {
		_, err := Decode[item](&Response{Status: 200, Data: []byte(`{"success":false,"message":"out of stock"}`)})
		require.Error(t, err)
		e := Normalize(err)
		assert.Equal(t, KindServer, e.Kind)
		assert.Equal(t, "out of stock", e.Message)
	})

	t.Run("bad data", func(t *testing.T) {
		_, err := Decode[item](&Response{Status: 200, Data: []byte(`{"success":true,"data":"nope"}`)})
		require.Error(t, err)
		assert.True(t, sberrors.HasCode(err, sberrors.ErrCodeAPIDecode))
	})

	t.Run("empty body", func(t *testing.T) {
		_, err := Decode[item](&Response{Status: 204})
		assert.True(t, sberrors.HasCode(err, sberrors.ErrCodeAPIDecode))
	})
}
