package pagination

import "testing"

func TestSlice(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	t.Run("first_page", func(t *testing.T) {
		got := Slice(items, PageRequest{Page: 1, PageSize: 2})
		if len(got.Data) != 2 || got.Data[0] != 1 || got.Data[1] != 2 {
			t.Errorf("unexpected data: %v", got.Data)
		}
		if got.TotalItems != 5 || got.TotalPages != 3 {
			t.Errorf("expected 5 items over 3 pages, got %d/%d", got.TotalItems, got.TotalPages)
		}
	})

	t.Run("last_partial_page", func(t *testing.T) {
		got := Slice(items, PageRequest{Page: 3, PageSize: 2})
		if len(got.Data) != 1 || got.Data[0] != 5 {
			t.Errorf("unexpected data: %v", got.Data)
		}
	})

	t.Run("past_the_end", func(t *testing.T) {
		got := Slice(items, PageRequest{Page: 9, PageSize: 2})
		if got.Data == nil || len(got.Data) != 0 {
			t.Errorf("expected empty non-nil page, got %v", got.Data)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		got := Slice(items, PageRequest{})
		if got.Page != 1 || got.PageSize != 20 || len(got.Data) != 5 {
			t.Errorf("unexpected defaults: page=%d size=%d len=%d", got.Page, got.PageSize, len(got.Data))
		}
	})

	t.Run("copy_is_detached", func(t *testing.T) {
		got := Slice(items, PageRequest{Page: 1, PageSize: 5})
		got.Data[0] = 99
		if items[0] != 1 {
			t.Error("page should not alias the source slice")
		}
	})
}
