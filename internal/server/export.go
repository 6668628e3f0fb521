package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) exportJob(c *gin.Context) {
	id, ok := s.jobID(c)
	if !ok {
		return
	}
	data, err := s.exporter.ExportJobXLSX(c.Request.Context(), id)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "job_id", id, "error", err)
		s.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="boq-%s.xlsx"`, id))
	c.Data(http.StatusOK, xlsxContentType, data)
}
