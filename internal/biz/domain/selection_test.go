package domain

import (
	"errors"
	"testing"
	"time"
)

func threeItems() []SearchItem {
	return []SearchItem{
		{Title: "One", URL: "https://youtu.be/1", Duration: 3 * time.Minute},
		{Title: "Two", URL: "https://youtu.be/2", Duration: 4 * time.Minute},
		{Title: "Three", URL: "https://youtu.be/3"},
	}
}

func TestNewSearchResultSet_CapsAtFive(t *testing.T) {
	var items []SearchItem
	for i := 0; i < 8; i++ {
		items = append(items, SearchItem{Title: "x"})
	}
	set := NewSearchResultSet("q", items)
	if len(set.Items) != MaxSearchItems {
		t.Errorf("Expected %d items, got %d", MaxSearchItems, len(set.Items))
	}
}

func TestPending_ChooseSearchItem(t *testing.T) {
	p := NewSearchPending(NewSearchResultSet("q", threeItems()))

	for k := 1; k <= 3; k++ {
		choice, err := p.Choose(k)
		if err != nil {
			t.Fatalf("Choose(%d) error: %v", k, err)
		}
		want := threeItems()[k-1]
		if choice.URL != want.URL || choice.Title != want.Title {
			t.Errorf("Choose(%d) = %+v, want item %d", k, choice, k-1)
		}
		if choice.Quality != QualityAudio {
			t.Errorf("Expected audio quality for search selection, got %s", choice.Quality)
		}
	}
}

func TestPending_ChooseOutOfRange(t *testing.T) {
	p := NewSearchPending(NewSearchResultSet("q", threeItems()))

	for _, k := range []int{0, -1, 4, 99} {
		if _, err := p.Choose(k); !errors.Is(err, ErrSelectionOutOfRange) {
			t.Errorf("Choose(%d) error = %v, want ErrSelectionOutOfRange", k, err)
		}
	}
}

func TestPending_ChooseQuality(t *testing.T) {
	p := NewQualityPending(&QualityOffer{URL: "https://youtu.be/x", Options: DefaultQualityOptions})

	choice, err := p.Choose(3)
	if err != nil {
		t.Fatalf("Choose error: %v", err)
	}
	if choice.Quality != Quality720 || choice.URL != "https://youtu.be/x" {
		t.Errorf("Unexpected choice: %+v", choice)
	}
}

func TestSearchItem_FormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "?"},
		{59 * time.Second, "0:59"},
		{5*time.Minute + 55*time.Second, "5:55"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		if got := (SearchItem{Duration: tt.d}).FormatDuration(); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
