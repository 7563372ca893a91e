package token

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose separates the token families. A token is only ever accepted by the
// validator of its own purpose.
type Purpose string

const (
	PurposeSignup      Purpose = "signup"
	PurposeAccess      Purpose = "access"
	PurposeRefresh     Purpose = "refresh"
	PurposeDeviceTrust Purpose = "device_trust"
)

// Claims is the JSON payload sealed inside every token. Registered claims
// use numeric dates so the golang-jwt validator can check them.
type Claims struct {
	Purpose   Purpose `json:"purpose"`
	Email     string  `json:"email,omitempty"`
	Name      string  `json:"name,omitempty"`
	ACR       string  `json:"acr,omitempty"`
	AMR       []int   `json:"amr,omitempty"`
	SessionID string  `json:"sid,omitempty"`
	DeviceID  string  `json:"did,omitempty"`
	jwt.RegisteredClaims
}

// ACRLevel returns the numeric acr, treating anything unparseable as 1.
func (c *Claims) ACRLevel() int {
	n, err := strconv.Atoi(c.ACR)
	if err != nil || n < 0 {
		return 1
	}
	return n
}

// Methods decodes the amr claim.
func (c *Claims) Methods() []string {
	return DecodeAMR(c.AMR)
}
