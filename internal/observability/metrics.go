package observability

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"
	MStockCompensations      MetricKey = "stock_compensations_total"
)

var metricHelp = map[MetricKey]string{
	MUsecaseRequests:         "Total number of use case invocations.",
	MUsecaseDuration:         "Duration of use case execution in seconds.",
	MHTTPRequests:            "Total number of HTTP requests.",
	MHTTPRequestDuration:     "Duration of HTTP requests in seconds.",
	MExternalRequests:        "Calls to collaborators outside the process.",
	MExternalRequestDuration: "Duration of collaborator calls in seconds.",
	MStockCompensations:      "Stock increments issued to undo or reverse a decrement.",
}

func (k MetricKey) String() string { return string(k) }

// Help is the exposition help text for k, or empty for an unknown key.
func (k MetricKey) Help() string { return metricHelp[k] }
