package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/customs/auth"
	"github.com/jonwraymond/customs/config"
	"github.com/jonwraymond/customs/health"
	"github.com/jonwraymond/customs/observe"
)

const (
	enrollPath = "/enable_authenticator"
	qrSize     = 256
)

// routes mounts the application endpoints. httprouter panics on
// conflicting paths, which is reported as an error.
func (s *Server) routes() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("server: register routes: %v", r)
		}
	}()

	route := s.router.Handler
	health.RegisterHandlers(route, s.health)
	if s.metrics != nil {
		route(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))
	}

	route(http.MethodGet, "/", http.HandlerFunc(s.index))
	route(http.MethodPost, "/logout", http.HandlerFunc(s.logout))
	// A pending session reaches enrollment when the second factor redirects
	// there.
	route(http.MethodGet, enrollPath, s.engine.EnsureIdentified(http.HandlerFunc(s.beginEnrollment)))
	route(http.MethodPost, enrollPath, s.engine.EnsureIdentified(http.HandlerFunc(s.confirmEnrollment)))

	if names := s.strategiesOfType(auth.AuthMethodLocal, auth.AuthMethodBasic); len(names) > 0 {
		guard, err := s.engine.Protect(names...)
		if err != nil {
			return err
		}
		route(http.MethodPost, "/login", guard.WrapIdentity(auth.IdentityHandlerFunc(s.login)))
	}

	for _, name := range s.strategiesOfType(auth.AuthMethodOAuth2) {
		guard, err := s.engine.Protect(name)
		if err != nil {
			return err
		}
		zone := s.engine.SafeZone(route, guard).Group("/oauth/" + name)
		zone.GET("", http.HandlerFunc(s.oauthDone))
		zone.GET("/callback", http.HandlerFunc(s.oauthDone))
	}

	for _, zc := range s.config.Zones {
		guard, err := s.zoneGuard(zc)
		if err != nil {
			return fmt.Errorf("zone %s: %w", zc.Prefix, err)
		}
		zone := s.engine.SafeZone(route, guard).Group(zc.Prefix)
		zone.HandleIdentity(http.MethodGet, "/*rest", auth.IdentityHandlerFunc(s.whoami))
		zone.HandleIdentity(http.MethodPost, "/*rest", auth.IdentityHandlerFunc(s.whoami))
	}
	return nil
}

func (s *Server) zoneGuard(zc config.ZoneConfig) (*auth.Guard, error) {
	var (
		guard *auth.Guard
		err   error
	)
	if zc.SecondFactor != "" {
		guard, err = s.engine.ProtectMFA(zc.Strategies, zc.SecondFactor)
	} else {
		guard, err = s.engine.Protect(zc.Strategies...)
	}
	if err != nil {
		return nil, err
	}
	if zc.Redirect != "" {
		guard = guard.RedirectUnauthorized(zc.Redirect)
	}
	return guard, nil
}

func (s *Server) strategiesOfType(types ...auth.AuthMethod) []string {
	var names []string
	for _, sc := range s.config.Strategies {
		for _, t := range types {
			if sc.Type == string(t) {
				names = append(names, strategyName(sc))
			}
		}
	}
	return names
}

// bearer returns the first configured bearer token strategy, if any.
func (s *Server) bearer() *auth.BearerStrategy {
	for _, name := range s.strategiesOfType(auth.AuthMethodJWT) {
		if st, ok := s.engine.Registry().Get(name); ok {
			if b, ok := st.(*auth.BearerStrategy); ok {
				return b
			}
		}
	}
	return nil
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"authenticated": s.engine.IsAuthenticated(r)}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	resp := map[string]any{
		"id":   id.ID(),
		"next": s.engine.NextURL(w, r, "/"),
	}
	if b := s.bearer(); b != nil {
		token, err := b.Sign(r.Context(), id)
		if err != nil {
			s.serverError(w, r, "sign token", err)
			return
		}
		resp["token"] = token
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Logout(w, r); err != nil {
		s.serverError(w, r, "logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) oauthDone(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.engine.NextURL(w, r, "/"), http.StatusFound)
}

func (s *Server) whoami(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	writeJSON(w, http.StatusOK, map[string]any{
		"path":     r.URL.Path,
		"strategy": auth.StrategyFromContext(r.Context()),
		"identity": id,
	})
}

// beginEnrollment issues a new TOTP secret for the signed-in user. With
// ?format=png the provisioning URL is returned as a QR code image.
func (s *Server) beginEnrollment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := auth.PrincipalFromContext(ctx)
	if !s.mayEnroll(w, r, username) {
		return
	}

	enrollment, err := auth.GenerateTOTPSecret(s.config.Token.Issuer, username)
	if err != nil {
		s.serverError(w, r, "generate totp secret", err)
		return
	}
	if err := s.users.BeginTOTP(ctx, username, enrollment.Secret()); err != nil {
		s.serverError(w, r, "store totp secret", err)
		return
	}

	if r.URL.Query().Get("format") == "png" {
		png, err := enrollment.QRCode(qrSize, qrSize)
		if err != nil {
			s.serverError(w, r, "render qr code", err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"secret": enrollment.Secret(),
		"url":    enrollment.URL(),
	})
}

// confirmEnrollment verifies the first code from the authenticator app.
func (s *Server) confirmEnrollment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := auth.PrincipalFromContext(ctx)
	if !s.mayEnroll(w, r, username) {
		return
	}
	code, _ := auth.NewRequest(r).BodyValue(auth.FieldOTP)

	ok, err := s.users.ConfirmTOTP(ctx, username, code)
	if err != nil {
		s.serverError(w, r, "confirm totp", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_code"})
		return
	}
	// The cached identity still says totp_enabled=false.
	_ = s.identity.Forget(ctx, map[string]any{"id": username})
	writeJSON(w, http.StatusOK, map[string]any{
		"totp_enabled": true,
		"next":         s.engine.NextURL(w, r, "/"),
	})
}

// mayEnroll refuses to replace a confirmed authenticator unless the request
// already passed a TOTP factor.
func (s *Server) mayEnroll(w http.ResponseWriter, r *http.Request, username string) bool {
	_, verified, err := s.users.PendingTOTP(r.Context(), username)
	if err != nil {
		s.serverError(w, r, "load totp enrollment", err)
		return false
	}
	if !verified {
		return true
	}
	for _, name := range s.strategiesOfType(auth.AuthMethodTOTP) {
		if auth.HasFactor(r.Context(), name) {
			return true
		}
	}
	writeJSON(w, http.StatusForbidden, map[string]any{"error": "already_enrolled"})
	return false
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.Error(r.Context(), op+" failed",
		observe.Field{Key: "path", Value: r.URL.Path},
		observe.Field{Key: "error", Value: err.Error()},
	)
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "server_error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
