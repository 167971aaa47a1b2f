// Package api wires the HTTP surface: route dispatch in this package,
// request handling in handlers, cross-cutting concerns in middleware.
package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txnflow/internal/api/handlers"
	"github.com/dvloznov/txnflow/internal/api/middleware"
)

// Handlers bundles the endpoint handlers the router dispatches to.
type Handlers struct {
	Uploads      *handlers.UploadsHandler
	Transactions *handlers.TransactionsHandler
	Mappings     *handlers.MappingsHandler
	Jobs         *handlers.JobsHandler
}

// NewRouter builds the full HTTP handler: routes plus the middleware chain.
func NewRouter(h Handlers, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Profile-scoped endpoints
	mux.HandleFunc("/api/profiles/", func(w http.ResponseWriter, r *http.Request) {
		routeProfile(h, w, r)
	})

	// Shared keyword mappings
	mux.HandleFunc("/api/mappings/keywords", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.Mappings.ListKeywords(w, r)
		case http.MethodPost:
			h.Mappings.SaveKeyword(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/mappings/keywords/", func(w http.ResponseWriter, r *http.Request) {
		keyword := pathSegment(r.URL.Path, "/api/mappings/keywords/")
		if keyword == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Keyword is required")
			return
		}
		if r.Method == http.MethodDelete {
			h.Mappings.DeleteKeyword(w, r, keyword)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Jobs.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		jobID := pathSegment(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		if r.Method == http.MethodGet {
			h.Jobs.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)
}

// routeProfile dispatches /api/profiles/{profileID}/... paths.
func routeProfile(h Handlers, w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/profiles/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) < 2 || segments[0] == "" {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	profileID := segments[0]

	switch segments[1] {
	case "upload", "upload-multiple":
		if len(segments) == 2 && r.Method == http.MethodPost {
			h.Uploads.Upload(w, r, profileID)
			return
		}
	case "ingest":
		if len(segments) == 2 && r.Method == http.MethodPost {
			h.Uploads.EnqueueIngest(w, r, profileID)
			return
		}
	case "transactions":
		switch {
		case len(segments) == 2 && r.Method == http.MethodGet:
			h.Transactions.List(w, r, profileID)
			return
		case len(segments) == 2 && r.Method == http.MethodDelete:
			h.Transactions.DeleteAll(w, r, profileID)
			return
		case len(segments) == 3 && segments[2] == "reclassify" && r.Method == http.MethodPost:
			h.Transactions.Reclassify(w, r, profileID)
			return
		case len(segments) == 3 && r.Method == http.MethodDelete:
			h.Transactions.Delete(w, r, profileID, segments[2])
			return
		case len(segments) == 4 && segments[3] == "category" && r.Method == http.MethodPost:
			h.Transactions.ConfirmCategory(w, r, profileID, segments[2])
			return
		}
	case "mappings":
		switch {
		case len(segments) == 2 && r.Method == http.MethodGet:
			h.Mappings.ListPersonal(w, r, profileID)
			return
		case len(segments) == 2 && r.Method == http.MethodPost:
			h.Mappings.SavePersonal(w, r, profileID)
			return
		case len(segments) == 3 && r.Method == http.MethodDelete:
			text := segments[2]
			if decoded, err := url.PathUnescape(text); err == nil {
				text = decoded
			}
			h.Mappings.DeletePersonal(w, r, profileID, text)
			return
		}
	case "sources":
		if len(segments) == 2 && r.Method == http.MethodGet {
			h.Transactions.ListSources(w, r, profileID)
			return
		}
	case "analyze":
		if len(segments) == 2 && r.Method == http.MethodGet {
			h.Transactions.Analyze(w, r, profileID)
			return
		}
	}

	middleware.WriteError(w, http.StatusNotFound, "Not found")
}

// pathSegment returns the single path segment after prefix, URL-decoded.
// Korean keywords arrive percent-encoded.
func pathSegment(path, prefix string) string {
	s := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if s == "" || strings.Contains(s, "/") {
		return ""
	}
	if decoded, err := url.PathUnescape(s); err == nil {
		return decoded
	}
	return s
}
