// Package remote reads the initial user list from the remote user API.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"gitlab.com/dirk.krummacker/user-management/internal/model"
)

// DefaultURL is the address of the public user API.
const DefaultURL = "https://dummyjson.com/users"

// remoteUser is the part of a remote user that is projected onto model.User. All other
// attributes of the remote API are ignored.
type remoteUser struct {
	Id        int    `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Age       int    `json:"age"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	BirthDate string `json:"birthDate"`
}

type usersResponse struct {
	Users []remoteUser `json:"users"`
}

// Client fetches users from the remote API.
type Client struct {
	url  string
	http *http.Client
}

// NewClient creates a client for the given URL. A nil http client means http.DefaultClient.
func NewClient(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{url: url, http: httpClient}
}

// FetchUsers performs a single read of the remote user list.
func (c *Client) FetchUsers(ctx context.Context) ([]model.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making http request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", res.StatusCode, c.url)
	}

	var body usersResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("could not decode users: %w", err)
	}
	users := make([]model.User, 0, len(body.Users))
	for _, u := range body.Users {
		users = append(users, model.User(u))
	}
	return users, nil
}
