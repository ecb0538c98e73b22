package protocol

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name   string
		buffer string
		want   []string
	}{
		{name: "empty buffer", buffer: "", want: []string{""}},
		{name: "single frame", buffer: "&25_1@2@0#", want: []string{"25_1@2@0"}},
		{name: "concatenated frames", buffer: "&abc#&def#&ghi#", want: []string{"abc", "def", "ghi"}},
		{name: "missing final end", buffer: "&abc#&def", want: []string{"abc", "def"}},
		{name: "only markers", buffer: "&#", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.buffer))
		})
	}
}

func TestAssemble(t *testing.T) {
	t.Run("no fields", func(t *testing.T) {
		assert.Equal(t, "&0#", Assemble(CmdVersionResponse))
	})

	t.Run("several fields", func(t *testing.T) {
		assert.Equal(t, "&25_a_b#", Assemble(CmdConnectionRequest, "a", "b"))
	})

	t.Run("split undoes assemble", func(t *testing.T) {
		buffer := Assemble(10, "x") + Assemble(99, "y")
		assert.Equal(t, []string{"10_x", "99_y"}, Split(buffer))
	})
}

func TestExtractCommand(t *testing.T) {
	t.Run("with markers", func(t *testing.T) {
		cmd, err := ExtractCommand("&98_5@true#")
		require.NoError(t, err)
		assert.Equal(t, CmdTokenVerificationResponse, cmd)
	})

	t.Run("without payload", func(t *testing.T) {
		cmd, err := ExtractCommand("25")
		require.NoError(t, err)
		assert.Equal(t, CmdConnectionRequest, cmd)
	})

	t.Run("non numeric", func(t *testing.T) {
		_, err := ExtractCommand("&abc_1#")
		assert.ErrorIs(t, err, ErrMalformedFrame)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ExtractCommand("")
		assert.ErrorIs(t, err, ErrMalformedFrame)
	})
}

func TestScanFrames(t *testing.T) {
	t.Run("frames split across reads", func(t *testing.T) {
		sc := bufio.NewScanner(strings.NewReader("&25_1@2@0#&10_a@b#&0_tail"))
		sc.Split(ScanFrames)

		var got []string
		for sc.Scan() {
			got = append(got, sc.Text())
		}
		require.NoError(t, sc.Err())
		assert.Equal(t, []string{"&25_1@2@0#", "&10_a@b#", "&0_tail"}, got)
	})

	t.Run("need more data", func(t *testing.T) {
		advance, token, err := ScanFrames([]byte("&25_1"), false)
		require.NoError(t, err)
		assert.Zero(t, advance)
		assert.Nil(t, token)
	})
}
