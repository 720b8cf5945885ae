package service

import (
	"errors"
	"strconv"
	"strings"
)

// IndexPageSize is the number of child pages shown per index page.
const IndexPageSize = 10

// Window is one page of a paginated result.
type Window struct {
	Number   int
	NumPages int
	PerPage  int
	Total    int64
}

// Paginate selects a page window from a raw, user supplied page number.
// Input never fails: anything that is not an integer selects the first page,
// and integers outside 1..NumPages select the last page. An empty result
// still has one (empty) page.
func Paginate(total int64, perPage int, raw string) Window {
	perPage = normalizePerPage(perPage, IndexPageSize)
	numPages := calculateTotalPages(total, perPage)

	number := 1
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	var numErr *strconv.NumError
	switch {
	case err == nil:
		number = n
		if number < 1 || number > numPages {
			number = numPages
		}
	case errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange):
		// 超出 int 范围的整数同样视为越界
		number = numPages
	}

	return Window{Number: number, NumPages: numPages, PerPage: perPage, Total: total}
}

// Offset is the number of items before this window.
func (w Window) Offset() int {
	return (w.Number - 1) * w.PerPage
}

func (w Window) HasPrevious() bool {
	return w.Number > 1
}

func (w Window) HasNext() bool {
	return w.Number < w.NumPages
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func normalizePerPage(perPage, fallback int) int {
	if perPage <= 0 {
		return fallback
	}
	if perPage > 100 {
		return 100
	}
	return perPage
}

func calculateTotalPages(total int64, perPage int) int {
	if perPage <= 0 {
		return 1
	}
	if total == 0 {
		return 1
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}
