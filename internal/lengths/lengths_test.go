package lengths

import (
	"errors"
	"testing"

	"civiclens/internal/domain"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		minLen  int
		maxLen  int
		words   int
		wantMin int
		wantMax int
		wantErr bool
	}{
		{
			"long input passes through",
			60, 180, 100,
			60, 180, false,
		},
		{
			"ceiling clamped to absolute maximum",
			60, 500, 100,
			60, 240, false,
		},
		{
			"floor clamped to absolute minimum",
			0, 180, 100,
			1, 180, false,
		},
		{
			"min above max fails",
			150, 100, 90,
			0, 0, true,
		},
		{
			"equal bounds fail",
			100, 100, 90,
			0, 0, true,
		},
		{
			"short input tightens the ceiling",
			60, 180, 10,
			30, 40, false,
		},
		{
			"short input keeps the gap below the ceiling",
			60, 180, 60,
			60, 72, false,
		},
		{
			"short input leaves a small request untouched",
			1, 2, 50,
			1, 2, false,
		},
		{
			"boundary word count is not tightened",
			60, 180, 80,
			60, 180, false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			bounds, err := Resolve(test.minLen, test.maxLen, test.words)

			if test.wantErr {
				if err == nil {
					t.Fatalf("Expected an error, got bounds %+v", bounds)
				}

				var domErr *domain.Error
				if !errors.As(err, &domErr) || domErr.Code != domain.CodeBadLengths {
					t.Fatalf("Expected BAD_LENGTHS, got %v", err)
				}

				return
			}

			if err != nil {
				t.Fatalf("Expected success, got %v", err)
			}

			if bounds.MinLen != test.wantMin || bounds.MaxLen != test.wantMax {
				t.Errorf("Expected bounds (%d, %d), got (%d, %d)",
					test.wantMin, test.wantMax, bounds.MinLen, bounds.MaxLen)
			}
		})
	}
}

func TestResolveShortInputInvariants(t *testing.T) {
	for words := 1; words < 80; words++ {
		bounds, err := Resolve(60, 180, words)
		if err != nil {
			t.Fatalf("words=%d: expected success, got %v", words, err)
		}

		ceiling := min(120, max(40, int(float64(words)*1.2+0.5)))
		if bounds.MaxLen > ceiling {
			t.Errorf("words=%d: max %d above tightened ceiling %d",
				words, bounds.MaxLen, ceiling)
		}

		if bounds.MinLen >= bounds.MaxLen {
			t.Errorf("words=%d: bounds (%d, %d) are not ordered",
				words, bounds.MinLen, bounds.MaxLen)
		}

		if bounds.MinLen < MinAllowed || bounds.MaxLen > MaxAllowed {
			t.Errorf("words=%d: bounds (%d, %d) outside absolute limits",
				words, bounds.MinLen, bounds.MaxLen)
		}
	}
}
