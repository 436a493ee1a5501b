package domain

import "strings"

type TattooArtist struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	PhoneNumber  string `json:"phone_number"`
	Facebook     string `json:"facebook,omitempty"`
	Instagram    string `json:"instagram,omitempty"`
	PasswordHash string `json:"-"`
}

func (a TattooArtist) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	Artist      TattooArtist `json:"artist"`
}
