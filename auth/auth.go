package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"micro-twitter/domain/user"
	"micro-twitter/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
)

type contextKey struct{}

var callerKey contextKey

// Service is the identity context: account creation, token issuance and token
// verification. Everything downstream consumes only the resolved caller id.
type Service struct {
	Store  storage.Storage
	Secret []byte
}

func NewService(store storage.Storage, secret []byte) *Service {
	return &Service{Store: store, Secret: secret}
}

func (s *Service) Signup(ctx context.Context, username, email, password string) (*user.User, error) {
	if username == "" || email == "" || password == "" {
		return nil, ErrInvalidInput
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	if err != nil {
		return nil, err
	}
	u := &user.User{Username: username, Email: email, Password: string(hashed)}
	if err := s.Store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login verifies the password and returns a signed token carrying the user id.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.Store.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": u.Id})
	return token.SignedString(s.Secret)
}

// Authenticate resolves the caller identity from the Authorization header and
// stores it in the request context. 401 when the header is absent, 403 when
// the token does not verify.
func (s *Service) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		callerId, err := s.verify(parts[1])
		if err != nil {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), callerId)))
	})
}

func (s *Service) verify(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.Secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidCredentials
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidCredentials
	}
	id, ok := claims["id"].(string)
	if !ok || id == "" {
		return "", ErrInvalidCredentials
	}
	return id, nil
}

// WithCaller returns ctx carrying the authenticated caller id.
func WithCaller(ctx context.Context, callerId string) context.Context {
	return context.WithValue(ctx, callerKey, callerId)
}

// CallerId extracts the authenticated caller id from the request context.
func CallerId(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(callerKey).(string)
	return id, ok
}
