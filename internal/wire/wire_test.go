package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/strix/pkg/streamparser"
)

func TestHeaderSizeMatchesParser(t *testing.T) {
	p, err := streamparser.New[Header](
		func(Header) bool { return true },
		func([]byte) bool { return true },
	)
	require.NoError(t, err)
	assert.Equal(t, HeaderSize, p.HeaderSize())
}

func TestEncodeMessage_RoundTripThroughParser(t *testing.T) {
	var headers []Header
	var bodies [][]byte
	p, err := streamparser.New[Header](
		func(h Header) bool { headers = append(headers, h); return true },
		func(b []byte) bool { bodies = append(bodies, append([]byte(nil), b...)); return true },
	)
	require.NoError(t, err)

	body := []byte("payload")
	require.NoError(t, p.HandleData(EncodeMessage(TypeData, 77, body)))

	require.Len(t, headers, 1)
	assert.NoError(t, headers[0].Validate())
	assert.Equal(t, TypeData, headers[0].Type)
	assert.Equal(t, uint32(77), headers[0].StreamID)
	assert.Equal(t, uint32(len(body)), headers[0].BodyLength())
	require.Len(t, bodies, 1)
	assert.Equal(t, body, bodies[0])
}

func TestValidate(t *testing.T) {
	good := Header{Magic: Magic, Version: Version, Type: TypeHeartbeat}
	assert.NoError(t, good.Validate())

	bad := good
	bad.Magic = 0xFFFF
	assert.ErrorIs(t, bad.Validate(), ErrBadMagic)

	bad = good
	bad.Version = 0x02
	assert.ErrorIs(t, bad.Validate(), ErrBadVersion)

	bad = good
	bad.Type = 0x7F
	assert.ErrorIs(t, bad.Validate(), ErrBadType)
}
