package jwt

import "github.com/golang-jwt/jwt/v5"

// Config holds JWT configuration
type Config struct {
	SecretKey string
}

// Claims represents the JWT claims accepted on feed connections
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Validator verifies HS256 tokens issued by the console's auth service.
type Validator struct {
	secretKey []byte
}
