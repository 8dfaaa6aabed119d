package transport

// DeleteResponse is the HTTP response body for cache invalidation.
type DeleteResponse struct {
	Deleted int `json:"deleted"`
}
