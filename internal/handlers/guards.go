package handlers

import (
	"net/http"
	"strconv"

	"github.com/mediatheque/backend/internal/apierror"
	"github.com/mediatheque/backend/internal/models"
	"github.com/mediatheque/backend/internal/policy"
)

// gateFailure converts a policy verdict into the envelope error: denial
// is 401 for anonymous requesters and 403 otherwise, a missing target
// is 404.
func gateFailure(requester *models.User, v policy.Verdict, resource string, id any) *apierror.Error {
	switch v.Effect {
	case policy.Allow:
		return nil
	case policy.NotFound:
		return apierror.NotFound(resource, id)
	}
	if requester == nil {
		return apierror.Authentication("")
	}
	return apierror.Authorization(v.Reason)
}

// pathID parses an integer path parameter; non-integer values map to
// 404 since no resource can carry that id.
func pathID(r *http.Request, name, resource string) (int, *apierror.Error) {
	raw := r.PathValue(name)
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, apierror.NotFound(resource, raw)
	}
	return id, nil
}
