package http

import (
	"log/slog"
	"net/http"
)

// Services are the handlers' collaborators. Observer and MetricsHandler are
// optional.
type Services struct {
	Bookings       BookingAPI
	Matching       MatchingAPI
	Responses      ResponseAPI
	Lifecycle      LifecycleAPI
	Discounts      DiscountValidator
	Events         EventSubscriber
	Auth           TokenVerifier
	Observer       HTTPObserver
	MetricsHandler http.Handler
	Logger         *slog.Logger
	CORSOrigins    []string
}

// NewRouter builds the API handler: routes, authentication, CORS and
// request logging.
func NewRouter(s Services) http.Handler {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{
		bookings:  s.Bookings,
		matching:  s.Matching,
		responses: s.Responses,
		lifecycle: s.Lifecycle,
		discounts: s.Discounts,
		events:    s.Events,
		logger:    logger,
	}

	mux := http.NewServeMux()
	route := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, instrument(s.Observer, pattern, fn))
	}

	route("GET /health", HealthHandler)
	if s.MetricsHandler != nil {
		mux.Handle("GET /metrics", s.MetricsHandler)
	}

	route("POST /jobs", h.createJob)
	route("GET /jobs/{id}", h.getJob)
	route("GET /jobs/{id}/candidates", h.candidates)
	route("POST /jobs/{id}/auto-assign", h.autoAssign)
	route("POST /jobs/{id}/broadcast", h.broadcast)
	route("POST /jobs/{id}/assignments", h.assign)
	route("POST /jobs/{id}/apply", h.apply)
	route("POST /jobs/{id}/responses", h.respond)
	route("POST /jobs/{id}/confirm", h.confirm)
	route("POST /jobs/{id}/complete", h.complete)
	route("POST /jobs/{id}/cancel", h.cancel)
	route("GET /admin/jobs", h.listJobs)
	route("POST /discounts/validate", h.validateDiscount)
	if s.Events != nil {
		mux.HandleFunc("GET /admin/events", h.streamEvents)
	}
	mux.Handle("/", NotFoundHandler())

	var handler http.Handler = mux
	if s.Auth != nil {
		handler = Authenticate(s.Auth, handler)
	}
	return RequestLogger(CORS(s.CORSOrigins, handler), logger)
}
