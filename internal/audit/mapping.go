package audit

import (
	"net/http"
	"strings"
)

// ActionResource holds action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

// routeOverrides name events whose generic verb would be misleading.
var routeOverrides = map[string]ActionResource{
	"PUT /api/auth/active-org":                             {Action: "active_org_switched", Resource: "account"},
	"POST /api/accounts/{accountID}/memberships":           {Action: "member_added", Resource: "membership"},
	"DELETE /api/accounts/{accountID}/memberships/{orgID}": {Action: "member_removed", Resource: "membership"},
	"PATCH /api/accounts/{accountID}/memberships/{orgID}":  {Action: "membership_changed", Resource: "membership"},
	"POST /api/auth/logout":                                {Action: "logout", Resource: "session"},
	"POST /api/customers/{customerID}/risk/recompute":      {Action: "risk_recomputed", Resource: "customer"},
	"PUT /api/payments/{paymentID}/status":                 {Action: "status_changed", Resource: "payment"},
	"PUT /api/alerts/{alertID}/resolve":                    {Action: "resolve", Resource: "alert"},
	"POST /api/enrollments":                                {Action: "enrollment_attempted", Resource: "enrollment"},
}

// serviceAudited routes write their own, richer audit entries.
var serviceAudited = map[string]bool{
	"PUT /api/customers/{customerID}/blacklist": true,
}

// AuditedByService reports whether the handler behind method and template audits itself.
func AuditedByService(method, template string) bool {
	return serviceAudited[method+" "+template]
}

// ParseRoute returns action and resource for an HTTP method and route template
// (e.g. "POST", "/api/customers"). Resource is the first path segment after /api, singularized.
func ParseRoute(method, template string) ActionResource {
	if ar, ok := routeOverrides[method+" "+template]; ok {
		return ar
	}
	return ActionResource{Action: methodToAction(method), Resource: routeToResource(template)}
}

func routeToResource(template string) string {
	segs := strings.Split(strings.Trim(template, "/"), "/")
	if len(segs) > 0 && segs[0] == "api" {
		segs = segs[1:]
	}
	if len(segs) == 0 || segs[0] == "" || strings.HasPrefix(segs[0], "{") {
		return "unknown"
	}
	s := strings.ReplaceAll(segs[0], "-", "_")
	if strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") {
		s = strings.TrimSuffix(s, "s")
	}
	return s
}

func methodToAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return "get"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
