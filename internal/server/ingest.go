package server

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/boq-matcher/constants"
	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/ingest"
	"github.com/joseph-ayodele/boq-matcher/internal/services/matching"
)

type submitResponse struct {
	JobID     uuid.UUID `json:"job_id"`
	ItemCount int       `json:"item_count"`
}

// submitJob accepts a JSON submission.
func (s *Server) submitJob(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		s.writeError(c, common.InvalidInput("unreadable body"))
		return
	}
	sub, err := ingest.DecodeSubmission(body)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.submit(c, matching.SubmitRequest{
		OwnerID:  sub.OwnerID,
		Name:     sub.Name,
		Strategy: sub.Strategy,
		Items:    sub.Items,
	})
}

// uploadJob accepts a multipart workbook in field "file" with owner_id,
// optional name, strategy and sheet form fields.
func (s *Server) uploadJob(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		s.writeError(c, common.InvalidInput("file is required"))
		return
	}
	if !constants.IsWorkbook(filepath.Ext(fh.Filename)) {
		s.writeError(c, common.InvalidInputf("unsupported file type %q", filepath.Ext(fh.Filename)))
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.writeError(c, common.InvalidInput("unreadable upload"))
		return
	}
	defer f.Close()

	items, err := ingest.ParseWorkbook(f, ingest.ParseOptions{Sheet: c.PostForm("sheet")})
	if err != nil {
		s.writeError(c, err)
		return
	}
	name := c.PostForm("name")
	if name == "" {
		name = fh.Filename
	}
	s.logger.Info("upload parsed", "file", fh.Filename, "size", fh.Size, "items", len(items))
	s.submit(c, matching.SubmitRequest{
		OwnerID:  c.PostForm("owner_id"),
		Name:     name,
		Strategy: c.PostForm("strategy"),
		Items:    items,
	})
}

func (s *Server) submit(c *gin.Context, req matching.SubmitRequest) {
	id, err := s.engine.SubmitJob(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Location", "/v1/jobs/"+id.String())
	c.JSON(http.StatusAccepted, submitResponse{JobID: id, ItemCount: len(req.Items)})
}
