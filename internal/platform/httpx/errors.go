package httpx

import (
	"errors"
	"net/http"

	accountdomain "carescope/backend/internal/account/domain"
	alertdomain "carescope/backend/internal/alert/domain"
	customerdomain "carescope/backend/internal/customer/domain"
	enrollmentdomain "carescope/backend/internal/enrollment/domain"
	identityservice "carescope/backend/internal/identity/service"
	membershipdomain "carescope/backend/internal/membership/domain"
	orgdomain "carescope/backend/internal/organization/domain"
	paymentdomain "carescope/backend/internal/payment/domain"
	"carescope/backend/internal/platform/rbac"
	"carescope/backend/internal/security"
	sessionservice "carescope/backend/internal/session/service"
)

// ErrBadRequest is returned for malformed request bodies and parameters.
var ErrBadRequest = errors.New("bad request")

var statusByErr = []struct {
	err    error
	status int
}{
	{rbac.ErrUnauthenticated, http.StatusUnauthorized},
	{rbac.ErrMissingOrgContext, http.StatusBadRequest},
	{rbac.ErrNoAccess, http.StatusForbidden},
	{security.ErrInvalidToken, http.StatusUnauthorized},
	{identityservice.ErrInvalidCredentials, http.StatusUnauthorized},
	{identityservice.ErrInvalidRefreshToken, http.StatusUnauthorized},
	{identityservice.ErrRefreshTokenReuse, http.StatusUnauthorized},
	{identityservice.ErrEmailAlreadyRegistered, http.StatusConflict},
	{identityservice.ErrInvalidInput, http.StatusBadRequest},
	{sessionservice.ErrAccountNotFound, http.StatusUnauthorized},
	{sessionservice.ErrOrgNotFound, http.StatusNotFound},
	{membershipdomain.ErrDuplicateMembership, http.StatusConflict},
	{membershipdomain.ErrMembershipNotFound, http.StatusNotFound},
	{membershipdomain.ErrUnknownAccountOrOrg, http.StatusNotFound},
	{membershipdomain.ErrInvalidRole, http.StatusBadRequest},
	{membershipdomain.ErrLastOwner, http.StatusConflict},
	{accountdomain.ErrInvalidRole, http.StatusBadRequest},
	{orgdomain.ErrInvalidOrg, http.StatusBadRequest},
	{customerdomain.ErrCustomerNotFound, http.StatusNotFound},
	{customerdomain.ErrInvalidCustomer, http.StatusBadRequest},
	{customerdomain.ErrDerivedField, http.StatusBadRequest},
	{paymentdomain.ErrPaymentNotFound, http.StatusNotFound},
	{paymentdomain.ErrInvalidPayment, http.StatusBadRequest},
	{paymentdomain.ErrInvalidStatus, http.StatusBadRequest},
	{paymentdomain.ErrInvalidTransition, http.StatusConflict},
	{alertdomain.ErrAlertNotFound, http.StatusNotFound},
	{alertdomain.ErrInvalidAlert, http.StatusBadRequest},
	{enrollmentdomain.ErrInvalidEnrollment, http.StatusBadRequest},
	{ErrBadRequest, http.StatusBadRequest},
}

// StatusFor maps err to an HTTP status. Unknown errors are 500.
func StatusFor(err error) int {
	var rej *enrollmentdomain.Rejection
	if errors.As(err, &rej) {
		return http.StatusUnprocessableEntity
	}
	for _, e := range statusByErr {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}
