package waitlist

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/akeren/lore-anchor-waitlist/config/router"
	apperrors "github.com/akeren/lore-anchor-waitlist/pkg/errors"
	"github.com/akeren/lore-anchor-waitlist/pkg/ratelimit"
)

const (
	CountStatusHeader      = "X-Waitlist-Count"
	countStatusOK          = "ok"
	countStatusUnavailable = "unavailable"
)

// NewWaitlistController mounts GET (count) and POST (register) at mountPoint.
// registerLimiter may be shared between mount points so aliases share a quota.
func NewWaitlistController(
	name string,
	mountPoint string,
	service WaitlistService,
	localizer *Localizer,
	registerLimiter ratelimit.RateLimiter,
) *router.RESTController {

	return router.NewRESTController(
		name,
		mountPoint,
		func(rs *router.RouterService, c *router.RESTController) {
			rs.AddGetHandler(c, nil, "", getCountHandler(service))
			rs.AddPostHandler(c, registerLimiter, "", registerHandler(service, localizer))
		},
	)
}

func getCountHandler(service WaitlistService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		result := service.GetCount(ctx.Request.Context())

		if result.Available {
			ctx.Header(CountStatusHeader, countStatusOK)
		} else {
			ctx.Header(CountStatusHeader, countStatusUnavailable)
		}

		return router.JSONResult(http.StatusOK, ToCountResponse(result))
	}
}

func registerHandler(service WaitlistService, localizer *Localizer) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		logger := router.GetLogger(ctx)
		acceptLanguage := ctx.GetHeader("Accept-Language")

		var req RegisterRequest

		if err := ctx.ShouldBindJSON(&req); err != nil {
			logger.Warn("Failed to bind waitlist request", "error", err,
				"fields", apperrors.FormatValidationErrors(err, &req))
			return bindErrorResult(err, localizer, acceptLanguage)
		}

		response, err := service.Register(ctx.Request.Context(), &req)
		if err != nil {
			return router.JSONResult(
				apperrors.HTTPStatusCode(err),
				ErrorResponse{Error: localizer.Translate(acceptLanguage, messageKeyFor(err))},
			)
		}

		return router.JSONResult(http.StatusOK, response)
	}
}

// bindErrorResult maps a body cut off by the size limit to 413, a
// wrong-typed email (or a non-object body) to the invalid email response and
// unparseable JSON to a server error.
func bindErrorResult(err error, localizer *Localizer, acceptLanguage string) *router.ServiceResult {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return router.PayloadTooLargeResult()
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return router.JSONResult(http.StatusBadRequest, ErrorResponse{
			Error: localizer.Translate(acceptLanguage, MsgInvalidEmail),
		})
	}

	return router.JSONResult(http.StatusInternalServerError, ErrorResponse{
		Error: localizer.Translate(acceptLanguage, MsgServerError),
	})
}

func messageKeyFor(err error) string {
	switch apperrors.GetErrorType(err) {
	case apperrors.ErrorTypeInvalidRequest:
		return MsgInvalidEmail
	case apperrors.ErrorTypeConflict:
		return MsgAlreadyRegistered
	case apperrors.ErrorTypeDatabaseError:
		return MsgRegistrationFailed
	default:
		return MsgServerError
	}
}
