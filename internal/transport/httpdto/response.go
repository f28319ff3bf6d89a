package httpdto

// StatusResponse is the storefront's generic reply for fire-and-forget
// CRUD calls: wishlist changes, password change, product delete.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func NewSuccessResponse(message string) StatusResponse {
	return StatusResponse{Success: true, Message: message}
}

func NewErrorResponse(message string) StatusResponse {
	return StatusResponse{Success: false, Message: message}
}

// ProfilePictureResponse extends the generic reply with the URL the
// profile view should swap in.
type ProfilePictureResponse struct {
	StatusResponse
	NewImageURL string `json:"new_image_url,omitempty"`
}

// WishlistStatusResponse reports whether a product is wishlisted.
type WishlistStatusResponse struct {
	InWishlist bool `json:"in_wishlist"`
}
