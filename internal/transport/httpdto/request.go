package httpdto

// ChangePasswordRequest mirrors /api/change_password. The confirm field is
// checked client-side before the call goes out.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}
