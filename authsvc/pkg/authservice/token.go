package authservice

import (
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/ichigozero/todokit/authsvc"
	"github.com/twinj/uuid"
)

type AccessToken struct {
	UUID string
	Hash string
}

// Claims is the payload of an access token. Subject holds the decimal user ID.
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.StandardClaims
}

type Tokenizer interface {
	// Issue signs a token for subject that expires after ttl. A ttl of
	// zero or less means AccessTokenExpiry.
	Issue(subject uint64, ttl time.Duration) (*AccessToken, error)
	// Verify checks signature and expiry and returns the subject and token ID.
	// Every failure is reported as authsvc.ErrInvalidToken.
	Verify(hash string) (uint64, string, error)
}

type tokenizer struct {
	secret []byte
	method jwt.SigningMethod
}

// NewTokenizer returns a Tokenizer signing with the named HMAC algorithm.
func NewTokenizer(secret, algorithm string) (Tokenizer, error) {
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok || secret == "" {
		return nil, authsvc.ErrUnsupportedMethod
	}
	return &tokenizer{secret: []byte(secret), method: method}, nil
}

var (
	uuidV4 = uuid.NewV4
	now    = time.Now
)

func (t *tokenizer) Issue(subject uint64, ttl time.Duration) (*AccessToken, error) {
	if ttl <= 0 {
		ttl = AccessTokenExpiry()
	}

	id := uuidV4().String()
	issued := now()

	claims := Claims{
		Scope: authsvc.Scope,
		StandardClaims: jwt.StandardClaims{
			Id:        id,
			Subject:   strconv.FormatUint(subject, 10),
			IssuedAt:  issued.Unix(),
			ExpiresAt: issued.Add(ttl).Unix(),
		},
	}

	hash, err := jwt.NewWithClaims(t.method, claims).SignedString(t.secret)
	if err != nil {
		return nil, err
	}

	return &AccessToken{id, hash}, nil
}

func (t *tokenizer) Verify(hash string) (uint64, string, error) {
	parser := &jwt.Parser{ValidMethods: []string{t.method.Alg()}}

	var claims Claims
	token, err := parser.ParseWithClaims(hash, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, "", authsvc.ErrInvalidToken
	}

	if claims.ExpiresAt == 0 || claims.Subject == "" {
		return 0, "", authsvc.ErrInvalidToken
	}

	subject, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || subject == 0 {
		return 0, "", authsvc.ErrInvalidToken
	}

	return subject, claims.Id, nil
}

func AccessTokenExpiry() time.Duration {
	return time.Minute * 30
}
