package common

type PaginationResult struct {
	Message     string      `json:"message"`
	Data        interface{} `json:"data"`
	Count       int64       `json:"count"`
	Limit       int         `json:"limit"`
	CurrentPage int         `json:"currentPage"`
	NextPage    int         `json:"nextPage"`
	PrevPage    int         `json:"prevPage"`
	LastPage    int         `json:"lastPage"`
}

// PaginateResponse wraps one page of a list endpoint. NextPage and PrevPage
// are 0 when there is no such page; an empty result has LastPage 0.
func PaginateResponse(data interface{}, total int64, page int, limit int, message string) PaginationResult {
	if message == "" {
		message = "success"
	}
	if page < 1 {
		page = 1
	}

	lastPage := 0
	if limit > 0 && total > 0 {
		lastPage = int((total + int64(limit) - 1) / int64(limit))
	}

	res := PaginationResult{
		Message:     message,
		Data:        data,
		Count:       total,
		Limit:       limit,
		CurrentPage: page,
	}
	if page < lastPage {
		res.NextPage = page + 1
	}
	if page > 1 {
		res.PrevPage = page - 1
	}
	res.LastPage = lastPage
	return res
}
