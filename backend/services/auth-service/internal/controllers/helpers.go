package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/learnly/mono-repo/backend/services/auth-service/internal/dtos"
	"github.com/learnly/mono-repo/backend/services/auth-service/internal/services"
	"github.com/learnly/mono-repo/backend/shared/go-middleware"
	"github.com/learnly/mono-repo/backend/shared/go-models"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
)

const maxBodyBytes = 1 << 16

var validate = validator.New()

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the 400 response itself and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any, validationMsg string) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		utils.RespondErrorWithCode(
			w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid payload", nil, err,
		)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		utils.RespondErrorWithCode(
			w, http.StatusBadRequest, utils.ErrCodeValidation, validationMsg, validationDetails(err), err,
		)
		return false
	}
	return true
}

// validationDetails lists the offending JSON fields without echoing values.
func validationDetails(err error) map[string]string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

// principalOrAbort returns the authenticated principal or writes a 401.
func principalOrAbort(w http.ResponseWriter, r *http.Request) (*middleware.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Authentication required", nil)
		return nil, false
	}
	return p, true
}

func tokenResponse(user *models.User, issued *services.IssuedToken) dtos.TokenResponse {
	return dtos.TokenResponse{
		AccessToken: issued.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(issued.ExpiresAt.Sub(issued.IssuedAt).Seconds()),
		ExpiresAt:   issued.ExpiresAt,
		User:        dtos.NewUserFromModel(user),
	}
}
