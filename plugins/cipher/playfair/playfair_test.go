package playfair

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chunkcipher/pkg/contract"
)

func TestGrid(t *testing.T) {
	c, err := New("playfair example")
	assert.ErrorIs(t, err, contract.ErrInvalidKey)
	assert.Nil(t, c)

	c, err = New("playfairexample")
	require.NoError(t, err)
	assert.Equal(t, "PLAYFIREXMBCDGHKNOQSTUVWZ", c.Grid())

	c, err = New("")
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGHIKLMNOPQRSTUVWXYZ", c.Grid())
}

func TestEncryptKnownVector(t *testing.T) {
	c, err := New("PLAYFAIREXAMPLE")
	require.NoError(t, err)
	got := c.ApplyCipher("HIDETHEGOLDINTHETREESTUMP", contract.Encrypt)
	assert.Equal(t, "BMODZBXDNABEKUDMUIXMMOUVIF", got)
	// 填充字母保留
	assert.Equal(t, "HIDETHEGOLDINTHETREXESTUMP", c.ApplyCipher(got, contract.Decrypt))
}

func TestDigraphPreparation(t *testing.T) {
	assert.Equal(t, "HELXLO", string(digraphs([]byte("HELLO"), true)))
	assert.Equal(t, "HELXLOOZ", string(digraphs([]byte("HELLOO"), true)))
	assert.Equal(t, "XQXZ", string(digraphs([]byte("XX"), true)))
	assert.Equal(t, "ZX", string(digraphs([]byte("Z"), true)))
	// 解密不拆分同字母对
	assert.Equal(t, "AABZ", string(digraphs([]byte("AAB"), false)))
	assert.Equal(t, "IAM", string(clean("j a-m")))
}

func TestTotality(t *testing.T) {
	c, err := New("KEYWORD")
	require.NoError(t, err)
	assert.Equal(t, "", c.ApplyCipher("", contract.Encrypt))
	assert.Equal(t, "", c.ApplyCipher("123", contract.Decrypt))
	out := c.ApplyCipher("ABC", contract.Decrypt)
	assert.Len(t, out, 4)
}

// 不含重复字母对、偶数长度且无 J 的明文可完整往返。
func TestRoundTripClean(t *testing.T) {
	c, err := New("MONARCHY")
	require.NoError(t, err)
	const text = "INSTRUMENTS"
	enc := c.ApplyCipher(text, contract.Encrypt)
	assert.Equal(t, "INSTRUMENTSZ", c.ApplyCipher(enc, contract.Decrypt))
}
