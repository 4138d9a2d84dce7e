package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/deskline/queue-api/internal/interfaces/httpserver/responses"
)

// SLAHandler serves the SLA report.
type SLAHandler struct {
	reporter SLAReporter
	log      zerolog.Logger
}

// NewSLAHandler constructs the handler.
func NewSLAHandler(reporter SLAReporter, log zerolog.Logger) *SLAHandler {
	return &SLAHandler{
		reporter: reporter,
		log:      log.With().Str("handler", "sla").Logger(),
	}
}

// Report handles GET /v1/metrics/sla
// @Summary Get the SLA report
// @Tags Metrics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} responses.SLAReportResponse
// @Failure 500 {object} responses.ErrorResponse
// @Router /v1/metrics/sla [get]
func (h *SLAHandler) Report(c *gin.Context) {
	report, err := h.reporter.ReportFor(c.Request.Context(), callerFrom(c))
	if err != nil {
		responses.HandleError(c, err, "failed to compute sla report")
		return
	}
	c.JSON(http.StatusOK, responses.NewSLAReportResponse(report))
}
