package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeBoardID(t *testing.T) {
	cases := []struct {
		in   string
		want string
		err  error
	}{
		{in: "Sketch", want: "sketch"},
		{in: "  team-board  ", want: "team-board"},
		{in: "https://draw.example.com/board/AbC123", want: "abc123"},
		{in: "https://draw.example.com/board/abc123/", want: "abc123"},
		{in: "", err: ErrEmptyBoardID},
		{in: "   ", err: ErrEmptyBoardID},
		{in: "https://draw.example.com/", err: ErrEmptyBoardID},
		{in: strings.Repeat("x", maxBoardIDLength+1), err: ErrBoardIDTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := NormalizeBoardID(tc.in)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
