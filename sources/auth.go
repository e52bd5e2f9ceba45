package sources

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/5amCurfew/dvtkt/models"
)

var accessToken string
var accessTokenExpiry time.Time

// setAuthHeader attaches a bearer token when client credentials are
// configured. Streams against unauthenticated endpoints (local mocks) skip
// the handshake entirely.
func setAuthHeader(req *http.Request, client *http.Client) error {
	if models.Config.Auth.ClientID == "" {
		return nil
	}

	token, err := getAccessToken(client)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// getAccessToken gets an access token for the Dataverse environment via the
// OAuth2 client-credentials grant, cached until shortly before expiry
func getAccessToken(client *http.Client) (string, error) {
	if accessToken != "" && time.Now().Before(accessTokenExpiry) {
		return accessToken, nil
	}

	const grantType = "client_credentials"

	tokenURL := models.Config.Auth.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", models.Config.Auth.TenantID)
	}

	form := url.Values{}
	form.Set("client_id", models.Config.Auth.ClientID)
	form.Set("client_secret", models.Config.Auth.ClientSecret)
	form.Set("grant_type", grantType)
	form.Set("scope", strings.TrimRight(models.Config.BaseURL, "/")+"/.default")

	req, err := http.NewRequest("POST", tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("error creating auth post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error auth post request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("error auth response: %d %s", resp.StatusCode, string(body))
	}

	var responseMap map[string]interface{}
	if err := json.Unmarshal(body, &responseMap); err != nil {
		return "", fmt.Errorf("error json.Unmarshal of auth response: %w", err)
	}

	token, ok := responseMap["access_token"].(string)
	if !ok {
		return "", fmt.Errorf("access_token not found in response")
	}

	expiresIn := 3600.0
	if seconds, ok := responseMap["expires_in"].(float64); ok {
		expiresIn = seconds
	}

	accessToken = token
	accessTokenExpiry = time.Now().Add(time.Duration(expiresIn-60) * time.Second)

	return accessToken, nil
}
