package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanResponse(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"plain", "  Revenue grew.  ", "Revenue grew."},
		{"block with blank line", "<reasoning>scratch</reasoning>\n\nAnswer.", "Answer."},
		{"block without blank line", "<reasoning>scratch</reasoning>Answer.", "Answer."},
		{"only first block", "<reasoning>a</reasoning>\n\nX <reasoning>b</reasoning>", "X <reasoning>b</reasoning>"},
		{"multiline block", "<reasoning>line1\nline2\n</reasoning>\n\nDone", "Done"},
		{"unclosed", "<reasoning>never closed\n\nAnswer", "<reasoning>never closed\n\nAnswer"},
		{"close only", "Answer</reasoning>", "Answer</reasoning>"},
		{"close before open", "</reasoning>x<reasoning>", "</reasoning>x<reasoning>"},
		{"think marker", "<think>hmm</think>\n\nFinal.", "Final."},
		{"empty", "", ""},
		{"text before block", "Intro <reasoning>x</reasoning>\n\nrest", "Intro rest"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanResponse(tc.in))
		})
	}
}
