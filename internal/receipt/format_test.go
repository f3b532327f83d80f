package receipt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatReceiptNumber(t *testing.T) {
	issued := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		in   FormatInput
		want string
	}{
		{
			name: "default",
			in:   FormatInput{Template: DefaultTemplate, IssuedAt: issued, Seq: 1},
			want: "REC-20250101-000001",
		},
		{
			name: "penalty",
			in:   FormatInput{Template: DefaultTemplate, IssuedAt: issued, Seq: 1, Penalty: true},
			want: "REC-P-20250101-000001",
		},
		{
			name: "custom marker without token",
			in:   FormatInput{Template: "{YEAR}/{SEQ4}", YearCode: "2526", IssuedAt: issued, Seq: 42, Penalty: true, PenaltyMarker: "LATE"},
			want: "LATE-2526/0042",
		},
		{
			name: "raw sequence and entropy",
			in:   FormatInput{Template: "R{YY}{MM}-{SEQ}-{RAND}", IssuedAt: issued, Seq: 1234567, Entropy: "X7QK"},
			want: "R2501-1234567-X7QK",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FormatReceiptNumber(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormatReceiptNumberErrors(t *testing.T) {
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := FormatReceiptNumber(FormatInput{Template: "", IssuedAt: issued, Seq: 1})
	assert.Error(t, err)

	_, err = FormatReceiptNumber(FormatInput{Template: DefaultTemplate, IssuedAt: issued, Seq: 0})
	assert.Error(t, err)

	_, err = FormatReceiptNumber(FormatInput{Template: "REC-{UNKNOWN}-{SEQ}", IssuedAt: issued, Seq: 1})
	assert.Error(t, err)
}
