package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPSecretFunc returns the TOTP secret enrolled for id.
// An empty secret means the identity has not completed enrollment.
type TOTPSecretFunc func(ctx context.Context, id Identity) (string, error)

// TOTPConfig configures the TOTP second factor.
type TOTPConfig struct {
	// Name is the registration name.
	// Default: "totp"
	Name string

	// Field is the body/query field holding the code.
	// Default: "otp"
	Field string

	// HeaderNames are checked for the code before the body and query.
	// Default: ["X-OTP"]
	HeaderNames []string

	// EnrollURL is where clients without an enrolled secret are sent.
	EnrollURL string

	// SecretField is read from the prior identity when Secret is nil.
	// Default: "totp_secret"
	SecretField string

	// Secret looks up the enrolled secret. Optional.
	Secret TOTPSecretFunc

	// Period is the code step.
	// Default: 30 seconds
	Period uint

	// Skew is how many steps before and after the current one are accepted.
	// Default: 1
	Skew uint

	// NoSkew accepts only the current step, overriding Skew.
	NoSkew bool

	// Now returns the current time.
	// Default: time.Now
	Now func() time.Time
}

// TOTPStrategy verifies a time-based one-time password against the secret
// enrolled for the identity produced by the first factor. On success it
// returns that identity unchanged.
type TOTPStrategy struct {
	Hooks

	config TOTPConfig
}

// NewTOTPStrategy creates a TOTP strategy.
func NewTOTPStrategy(config TOTPConfig) *TOTPStrategy {
	if config.Name == "" {
		config.Name = string(AuthMethodTOTP)
	}
	if config.Field == "" {
		config.Field = FieldOTP
	}
	if len(config.HeaderNames) == 0 {
		config.HeaderNames = []string{"X-OTP"}
	}
	if config.SecretField == "" {
		config.SecretField = "totp_secret"
	}
	if config.Period == 0 {
		config.Period = 30
	}
	switch {
	case config.NoSkew:
		config.Skew = 0
	case config.Skew == 0:
		config.Skew = 1
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &TOTPStrategy{config: config}
}

// Name returns the configured name.
func (s *TOTPStrategy) Name() string {
	return s.config.Name
}

// RequiresPrior reports that TOTP only runs as a second factor.
func (s *TOTPStrategy) RequiresPrior() bool {
	return true
}

// ExtractCredentials reads the code from headers, body or query.
func (s *TOTPStrategy) ExtractCredentials(req *Request) (Credentials, error) {
	raw := ExtractAny(req, s.config.Field, s.config.HeaderNames...)
	if v, ok := raw[s.config.Field]; ok {
		return Credentials{FieldOTP: v}, nil
	}
	return Credentials{}, nil
}

// Authenticate checks the code against the prior identity's secret.
func (s *TOTPStrategy) Authenticate(ctx context.Context, req *Request, prior Identity) (*AuthResult, error) {
	if prior == nil {
		return nil, Misconfigured(ErrNoPriorIdentity)
	}

	secret, err := s.secret(ctx, prior)
	if err != nil {
		return nil, err
	}
	if secret == "" {
		return AuthFailure(NotEnrolled(s.config.EnrollURL), s.Name()), nil
	}

	creds, _ := s.ExtractCredentials(req)
	code := creds.Get(FieldOTP)
	if code == "" {
		return AuthFailure(ErrMissingCredentials, s.Name()), nil
	}

	ok, err := s.Validate(secret, code)
	if err != nil || !ok {
		return AuthFailure(ErrInvalidCredentials, s.Name()), nil
	}
	return AuthSuccess(prior, s.Name()), nil
}

// Validate checks code against secret at the configured time.
func (s *TOTPStrategy) Validate(secret, code string) (bool, error) {
	return totp.ValidateCustom(code, secret, s.config.Now().UTC(), totp.ValidateOpts{
		Period:    s.config.Period,
		Skew:      s.config.Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
}

func (s *TOTPStrategy) secret(ctx context.Context, id Identity) (string, error) {
	if s.config.Secret != nil {
		return s.config.Secret(ctx, id)
	}
	return id.String(s.config.SecretField), nil
}

// TOTPEnrollment is a freshly generated TOTP secret.
type TOTPEnrollment struct {
	key *otp.Key
}

// GenerateTOTPSecret creates a new secret for account under issuer.
func GenerateTOTPSecret(issuer, account string) (*TOTPEnrollment, error) {
	if issuer == "" || account == "" {
		return nil, errors.New("auth: totp issuer and account are required")
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
	})
	if err != nil {
		return nil, fmt.Errorf("auth: generate totp secret: %w", err)
	}
	return &TOTPEnrollment{key: key}, nil
}

// Secret returns the base32 secret to store for the account.
func (e *TOTPEnrollment) Secret() string {
	return e.key.Secret()
}

// URL returns the otpauth:// provisioning URI.
func (e *TOTPEnrollment) URL() string {
	return e.key.URL()
}

// QRCode renders the provisioning URI as a PNG image.
func (e *TOTPEnrollment) QRCode(width, height int) ([]byte, error) {
	img, err := e.key.Image(width, height)
	if err != nil {
		return nil, fmt.Errorf("auth: render totp qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("auth: encode totp qr code: %w", err)
	}
	return buf.Bytes(), nil
}

// VerifyTOTP checks code against secret at time t with the default
// TOTPStrategy settings.
func VerifyTOTP(secret, code string, t time.Time) bool {
	s := NewTOTPStrategy(TOTPConfig{Now: func() time.Time { return t }})
	ok, err := s.Validate(secret, code)
	return err == nil && ok
}

// Ensure TOTPStrategy implements Strategy
var _ Strategy = (*TOTPStrategy)(nil)

// Ensure TOTPStrategy implements SecondFactor
var _ SecondFactor = (*TOTPStrategy)(nil)
