package slope

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"slopectl/internal/apperrors"
)

// pageLimit is the page size requested from list endpoints.
const pageLimit = 200

// page is one response from a list endpoint. Offset is the next page's
// offset, or null when there are no further pages.
type page[T any] struct {
	Items  []T  `json:"items"`
	Offset *int `json:"offset"`
}

// listAll follows the offset cursor from the first page until the server
// reports no further pages, returning items in server order.
func listAll[T any](ctx context.Context, s *Session, path string, filter url.Values) ([]T, error) {
	var (
		all    []T
		offset int
	)
	for {
		query := url.Values{}
		for k, v := range filter {
			query[k] = v
		}
		query.Set("Limit", strconv.Itoa(pageLimit))
		if offset > 0 {
			query.Set("Offset", strconv.Itoa(offset))
		}

		var p page[T]
		if err := s.do(ctx, http.MethodGet, path, query, nil, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Items...)

		if p.Offset == nil {
			return all, nil
		}
		// A cursor that does not advance would loop forever.
		if *p.Offset <= offset {
			return nil, apperrors.Decode(path, fmt.Errorf("next offset %d does not advance past %d", *p.Offset, offset))
		}
		offset = *p.Offset
	}
}
