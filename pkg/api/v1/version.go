package v1

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/guidepost-hq/guidepost/pkg/logger"
	"github.com/guidepost-hq/guidepost/pkg/versions"
)

// VersionRouter sets up version route.
func VersionRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/", getVersion)
	return r
}

// getVersion
//
//	@Summary		Get server version
//	@Description	Returns the version of the server
//	@Tags			version
//	@Produce		json
//	@Success		200	{object}	versionResponse
//	@Router			/api/v1/version [get]
func getVersion(w http.ResponseWriter, _ *http.Request) {
	info := versions.GetVersionInfo()

	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(versionResponse{
		Version:   info.Version,
		Commit:    info.Commit,
		BuildDate: info.BuildDate,
		GoVersion: info.GoVersion,
		Platform:  info.Platform,
	})
	if err != nil {
		logger.Errorf("Failed to encode version response: %v", err)
		http.Error(w, "Failed to encode version", http.StatusInternalServerError)
	}
}

// versionResponse represents the version information returned by the API.
type versionResponse struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}
