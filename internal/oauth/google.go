package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/fajar-dev/be-sele-sele/internal/service"
)

// googleUserInfo represents user info returned from Google.
type googleUserInfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// GoogleVerifier exchanges authorization codes issued by the SPA's popup
// flow for Google identities. The "postmessage" redirect URI is the value
// Google expects for codes obtained client-side.
type GoogleVerifier struct {
	config *oauth2.Config
}

func NewGoogleVerifier(clientID, clientSecret string) *GoogleVerifier {
	return &GoogleVerifier{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "postmessage",
			Scopes: []string{
				"openid",
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
	}
}

func (v *GoogleVerifier) Verify(ctx context.Context, code string) (*service.Identity, error) {
	token, err := v.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange OAuth code: %w", err)
	}

	info, err := fetchGoogleUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}

	if info.Email == "" {
		return nil, fmt.Errorf("google identity has no email")
	}

	identity := &service.Identity{Email: info.Email}
	if info.Sub != "" {
		identity.Sub = &info.Sub
	}
	if info.Name != "" {
		identity.Name = &info.Name
	}
	if info.Picture != "" {
		identity.AvatarURL = &info.Picture
	}
	return identity, nil
}

// fetchGoogleUserInfo retrieves user information from Google's userinfo endpoint.
func fetchGoogleUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get("https://openidconnect.googleapis.com/v1/userinfo")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	return &info, nil
}
