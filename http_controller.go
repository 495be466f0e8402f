package identity

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// NonceIssuer is the controller's view of the wallet signature provider.
type NonceIssuer interface {
	IssueNonce(ctx context.Context, address string) (*Nonce, error)
}

// MagicLinkIssuer is the controller's view of the magic link provider.
// Delivery of the emailed link stays outside this package.
type MagicLinkIssuer interface {
	IssueToken(ctx context.Context, email string) (string, error)
}

// HTTPConfig configures the identity HTTP controller.
type HTTPConfig struct {
	// NonceIssuer mints challenges for the wallet signature flow. Optional;
	// the nonce route is only registered when set.
	NonceIssuer NonceIssuer

	// MagicLink requests one-time login emails. Optional; the magic link
	// route is only registered when set.
	MagicLink MagicLinkIssuer

	// OnMagicLink receives the email and cleartext token so the host
	// application can send the actual email.
	OnMagicLink func(email, token string)

	// ErrorHandler handles errors (optional).
	ErrorHandler func(ctx router.Context, err error) error
}

// HTTPController exposes the identity flows over HTTP: credential exchange
// for a session cookie, wallet challenge issuance, magic link requests,
// logout, and a whoami endpoint.
type HTTPController struct {
	Debug     bool
	Logger    Logger
	requests  *RequestContext
	verifiers map[ProviderType]CredentialVerifier
	config    HTTPConfig
}

func NewHTTPController(requests *RequestContext, cfg HTTPConfig) *HTTPController {
	return &HTTPController{
		Logger:    defLogger{},
		requests:  requests,
		verifiers: map[ProviderType]CredentialVerifier{},
		config:    cfg,
	}
}

// WithVerifier registers a credential verifier for the exchange route.
func (a *HTTPController) WithVerifier(v CredentialVerifier) *HTTPController {
	a.verifiers[v.Provider()] = v
	return a
}

// RegisterRoutes wires the controller into a router group.
func (a *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Post("/exchange", a.Exchange)
	group.Post("/logout", a.Logout)
	group.Get("/whoami", a.WhoAmI)

	if a.config.NonceIssuer != nil {
		group.Post("/nonce", a.IssueNonce)
	}
	if a.config.MagicLink != nil {
		group.Post("/magic-link", a.RequestMagicLink)
	}
}

// ExchangeRequest trades a provider credential for a session cookie.
type ExchangeRequest struct {
	Provider   string `json:"provider"`
	Credential string `json:"credential"`
}

func (r ExchangeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Provider, validation.Required),
		validation.Field(&r.Credential, validation.Required),
	)
}

// Exchange verifies a provider credential, links it to a user, and issues a
// session cookie. The response carries the resolved user and role so the
// client can render immediately without a follow-up whoami call.
func (a *HTTPController) Exchange(ctx router.Context) error {
	payload := new(ExchangeRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.errorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to parse exchange request").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}

	verifier, ok := a.verifiers[ProviderType(payload.Provider)]
	if !ok {
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": "unknown provider",
		})
	}

	if a.Debug {
		a.Logger.Debug("exchange request: %s", print.MaybePrettyJSON(payload))
	}

	auth, err := a.requests.ResolveCredential(ctx.Context(), verifier, payload.Credential)
	if err != nil {
		if IsStoreUnavailable(err) {
			return a.errorHandler(ctx, err)
		}
		return ctx.JSON(router.StatusUnauthorized, map[string]string{
			"error": "invalid credential",
		})
	}

	if _, err := a.requests.IssueSession(ctx, auth.User); err != nil {
		return a.errorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"user": auth.User,
		"role": auth.Role,
	})
}

// NonceRequest asks for a wallet signature challenge.
type NonceRequest struct {
	Address string `json:"address"`
}

func (r NonceRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Address, validation.Required),
	)
}

// IssueNonce mints a single-use challenge bound to a wallet address.
func (a *HTTPController) IssueNonce(ctx router.Context) error {
	payload := new(NonceRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.errorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to parse nonce request").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}

	nonce, err := a.config.NonceIssuer.IssueNonce(ctx.Context(), payload.Address)
	if err != nil {
		if IsStoreUnavailable(err) {
			return a.errorHandler(ctx, err)
		}
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": "invalid address",
		})
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"nonce":      nonce.Value,
		"expires_at": nonce.ExpiresAt,
	})
}

// MagicLinkRequest asks for a one-time login email.
type MagicLinkRequest struct {
	Email string `json:"email"`
}

func (r MagicLinkRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// RequestMagicLink mints a one-time token and hands it to the host app's
// delivery hook. The response is the same whether or not the email is known,
// so the endpoint cannot be used to probe for accounts.
func (a *HTTPController) RequestMagicLink(ctx router.Context) error {
	payload := new(MagicLinkRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.errorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to parse magic link request").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}

	token, err := a.config.MagicLink.IssueToken(ctx.Context(), payload.Email)
	if err != nil {
		if IsStoreUnavailable(err) {
			return a.errorHandler(ctx, err)
		}
		a.Logger.Info("magic link request rejected: %v", err)
	} else if a.config.OnMagicLink != nil {
		a.config.OnMagicLink(NormalizeEmail(payload.Email), token)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"status": "sent",
	})
}

// Logout clears every session cookie. The artifact itself stays valid until
// expiry; clearing the cookie is the sign-out semantics.
func (a *HTTPController) Logout(ctx router.Context) error {
	a.requests.ClearSession(ctx)
	return ctx.JSON(router.StatusOK, map[string]string{
		"status": "signed_out",
	})
}

// WhoAmI resolves the caller and reports user and role, or an anonymous
// marker. It never fails on bad credentials, only on store outages.
func (a *HTTPController) WhoAmI(ctx router.Context) error {
	auth, err := a.requests.ContextFor(ctx)
	if err != nil {
		return a.errorHandler(ctx, err)
	}

	if auth.Anonymous() {
		return ctx.JSON(router.StatusOK, map[string]any{
			"anonymous": true,
		})
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"user": auth.User,
		"role": auth.Role,
	})
}

func (a *HTTPController) errorHandler(ctx router.Context, err error) error {
	if a.config.ErrorHandler != nil {
		return a.config.ErrorHandler(ctx, err)
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	a.Logger.Error("identity controller error [%s]: %s", richErr.Category, richErr.Message)

	return ctx.JSON(richErr.Code, map[string]string{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}
