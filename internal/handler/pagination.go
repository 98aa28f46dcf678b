package handler

import (
	"net/http"
	"strconv"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

type PaginationParams struct {
	Limit int
	Skip  int
}

func ParsePagination(r *http.Request) PaginationParams {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))

	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}

	if skip < 0 {
		skip = 0
	}

	return PaginationParams{
		Limit: limit,
		Skip:  skip,
	}
}
