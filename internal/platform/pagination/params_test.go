package pagination

import (
	"errors"
	"net/url"
	"testing"
)

var orderSortOptions = Options{
	SortFields:  []string{"createdAt", "totalAmount", "orderNumber"},
	DefaultDesc: true,
}

func TestParse_Defaults(t *testing.T) {
	params, err := Parse(url.Values{}, orderSortOptions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Params{Page: 1, Limit: DefaultLimit, SortBy: "createdAt", Desc: true}
	if params != want {
		t.Fatalf("expected %+v, got %+v", want, params)
	}
	if params.Offset() != 0 {
		t.Fatalf("expected offset 0, got %d", params.Offset())
	}
}

func TestParse_ExplicitValues(t *testing.T) {
	values := url.Values{
		"page":      {"3"},
		"limit":     {"25"},
		"sortBy":    {"totalAmount"},
		"sortOrder": {"ASC"},
	}
	params, err := Parse(values, orderSortOptions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Params{Page: 3, Limit: 25, SortBy: "totalAmount", Desc: false}
	if params != want {
		t.Fatalf("expected %+v, got %+v", want, params)
	}
	if params.Offset() != 50 {
		t.Fatalf("expected offset 50, got %d", params.Offset())
	}
}

func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
		want   error
	}{
		{"page zero", url.Values{"page": {"0"}}, ErrInvalidPage},
		{"page text", url.Values{"page": {"two"}}, ErrInvalidPage},
		{"limit zero", url.Values{"limit": {"0"}}, ErrInvalidLimit},
		{"limit above max", url.Values{"limit": {"101"}}, ErrInvalidLimit},
		{"unknown sort", url.Values{"sortBy": {"email"}}, ErrInvalidSortBy},
		{"bad order", url.Values{"sortOrder": {"sideways"}}, ErrInvalidOrder},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.values, orderSortOptions)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParse_CustomLimits(t *testing.T) {
	params, err := Parse(url.Values{"limit": {"50"}}, Options{DefaultLimit: 10, MaxLimit: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Limit != 50 || params.SortBy != "" {
		t.Fatalf("unexpected params %+v", params)
	}
	if _, err := Parse(url.Values{"limit": {"51"}}, Options{MaxLimit: 50}); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("expected limit rejection, got %v", err)
	}
}
