package registry

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chunkcipher/pkg/contract"
)

func TestStrictUnmarshal(t *testing.T) {
	type opt struct {
		A int `json:"a"`
	}
	var o opt
	require.NoError(t, strictUnmarshal(nil, &o))
	assert.Zero(t, o.A)
	require.NoError(t, strictUnmarshal(json.RawMessage(`{"a":1}`), &o))
	assert.Equal(t, 1, o.A)
	err := strictUnmarshal(json.RawMessage(`{"a":1,"b":2}`), &o)
	assert.ErrorIs(t, err, contract.ErrConfiguration, "未知字段应报错")
}

func TestBuildCipher(t *testing.T) {
	c, err := BuildCipher(contract.Caesar, "3")
	require.NoError(t, err)
	assert.Equal(t, "KHOOR", c.ApplyCipher("HELLO", contract.Encrypt))

	c, err = BuildCipher(contract.Vigenere, "key")
	require.NoError(t, err)
	assert.Equal(t, "RIJVSUYVJN", c.ApplyCipher("HELLOWORLD", contract.Encrypt))

	_, err = BuildCipher(contract.Playfair, "PLAYFAIREXAMPLE")
	require.NoError(t, err)

	bad := []struct {
		t   contract.CipherType
		key string
	}{
		{contract.Caesar, "-3"},
		{contract.Caesar, "abc"},
		{contract.Vigenere, "K3Y"},
		{contract.Playfair, "PLAY FAIR"},
		{contract.CipherType(99), "1"},
	}
	for _, b := range bad {
		c, err := BuildCipher(b.t, b.key)
		assert.ErrorIs(t, err, contract.ErrInvalidKey, "%s/%q", b.t, b.key)
		assert.Nil(t, c)
	}
}

func TestFactories(t *testing.T) {
	t.Run("reader", func(t *testing.T) {
		_, err := Reader["fs"](json.RawMessage(`{"include":["**/*.txt"]}`))
		require.NoError(t, err)
		_, err = Reader["fs"](json.RawMessage(`{"x":1}`))
		assert.ErrorIs(t, err, contract.ErrConfiguration)
	})
	t.Run("normalizer", func(t *testing.T) {
		_, err := Normalizer["translit"](nil)
		require.NoError(t, err)
		_, err = Normalizer["translit"](json.RawMessage(`{"digits":"drop"}`))
		require.NoError(t, err)
		_, err = Normalizer["translit"](json.RawMessage(`{"x":1}`))
		assert.ErrorIs(t, err, contract.ErrConfiguration)
	})
	t.Run("writer", func(t *testing.T) {
		tmp := t.TempDir()
		_, err := Writer["fs"](json.RawMessage(fmt.Sprintf(`{"output_dir":%q}`, tmp)))
		require.NoError(t, err)
		_, err = Writer["fs"](json.RawMessage(fmt.Sprintf(`{"output_dir":%q,"x":1}`, tmp)))
		assert.ErrorIs(t, err, contract.ErrConfiguration)
		_, err = Writer["stdout"](nil)
		require.NoError(t, err)
	})
}
