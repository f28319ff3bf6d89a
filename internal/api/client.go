package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"market-chat/internal/transport/httpdto"
	"market-chat/internal/validator"
	chat_errors "market-chat/pkg/errors"
	"market-chat/pkg/logger"
)

// Client wraps the storefront's side-state REST surface: password change,
// profile picture upload, wishlist CRUD, product delete. Every endpoint
// replies with {success, message} JSON; a success=false reply is surfaced
// as an ErrRequestRejected carrying the server's message.
type Client struct {
	baseURL  string
	http     *http.Client
	validate *validator.Validator
	log      *logger.Logger
}

func NewClient(baseURL string, httpClient *http.Client, log *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:  baseURL,
		http:     httpClient,
		validate: validator.New(),
		log:      log,
	}
}

// ChangePassword submits a password change. Mismatched or missing fields
// are rejected locally before any network call.
func (c *Client) ChangePassword(ctx context.Context, current, newPassword, confirm string) error {
	req := httpdto.ChangePasswordRequest{
		CurrentPassword: current,
		NewPassword:     newPassword,
		ConfirmPassword: confirm,
	}
	if errs := c.validate.ValidateStruct(req); len(errs) > 0 {
		return fmt.Errorf("%w: %s", chat_errors.ErrInvalidInput, errs[0].Field)
	}

	var resp httpdto.StatusResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/change_password", req, &resp); err != nil {
		return err
	}
	return statusErr(resp)
}

// UploadProfilePicture posts the image as multipart form data and returns
// the URL the profile view should display.
func (c *Client) UploadProfilePicture(ctx context.Context, filename string, file io.Reader) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("profile_picture", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload_profile_picture", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp httpdto.ProfilePictureResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if err := statusErr(resp.StatusResponse); err != nil {
		return "", err
	}
	return resp.NewImageURL, nil
}

func (c *Client) AddToWishlist(ctx context.Context, productID int) error {
	var resp httpdto.StatusResponse
	path := fmt.Sprintf("/api/wishlist/add/%d", productID)
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return err
	}
	return statusErr(resp)
}

func (c *Client) RemoveFromWishlist(ctx context.Context, productID int) error {
	var resp httpdto.StatusResponse
	path := fmt.Sprintf("/api/wishlist/remove/%d", productID)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return err
	}
	return statusErr(resp)
}

func (c *Client) ClearWishlist(ctx context.Context) error {
	var resp httpdto.StatusResponse
	if err := c.doJSON(ctx, http.MethodDelete, "/api/wishlist/clear", nil, &resp); err != nil {
		return err
	}
	return statusErr(resp)
}

func (c *Client) InWishlist(ctx context.Context, productID int) (bool, error) {
	var resp httpdto.WishlistStatusResponse
	path := fmt.Sprintf("/api/wishlist/check/%d", productID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.InWishlist, nil
}

func (c *Client) DeleteProduct(ctx context.Context, productID int) error {
	var resp httpdto.StatusResponse
	path := fmt.Sprintf("/api/products/delete/%d", productID)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return err
	}
	return statusErr(resp)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s %s: %s", chat_errors.ErrUnexpectedStatus, req.Method, req.URL.Path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func statusErr(resp httpdto.StatusResponse) error {
	if resp.Success {
		return nil
	}
	return fmt.Errorf("%w: %s", chat_errors.ErrRequestRejected, resp.Message)
}
